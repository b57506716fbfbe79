package captcha

import (
	"os"
	"time"
)

// CAPSOLVER_KEY_ENV is read when Config.FallbackAPIKey is empty.
const CAPSOLVER_KEY_ENV = "CAPSOLVER_API_KEY"

// Config tunes detection and solving. The zero value disables the fallback
// solver and auto solving, use DefaultConfig for the usual setup.
type Config struct {
	// AutoSolve runs a solve cycle after every navigation.
	AutoSolve bool `json:"auto_solve"`

	// FallbackAPIKey is the Capsolver key for the credentialed fallback.
	// When empty the CAPSOLVER_API_KEY environment variable is used.
	FallbackAPIKey string `json:"fallback_api_key"`

	// PerAttemptTimeout bounds one strategy attempt.
	PerAttemptTimeout time.Duration `json:"per_attempt_timeout"`

	// MaxRetries is how many times a failed or timed out attempt is
	// repeated. 0 means a single attempt.
	MaxRetries int `json:"max_retries"`

	// SettleTimeout is how long the classifier waits for late-injected
	// challenge markup before trusting an empty scan.
	SettleTimeout time.Duration `json:"settle_timeout"`

	// PostSolveGrace is a pause after a fully solved cycle, giving the
	// page time to process freshly injected tokens.
	PostSolveGrace time.Duration `json:"post_solve_grace"`
}

// DefaultConfig returns the configuration used when the caller does not
// provide one: auto solving on, two retries, minute-long attempts.
func DefaultConfig() Config {
	return Config{
		AutoSolve:         true,
		PerAttemptTimeout: time.Minute,
		MaxRetries:        2,
		SettleTimeout:     time.Second,
		PostSolveGrace:    2 * time.Second,
	}
}

// withDefaults fills unset fields so the rest of the package never has to
// guard against zero durations.
func (c Config) withDefaults() Config {
	if c.FallbackAPIKey == "" {
		c.FallbackAPIKey = os.Getenv(CAPSOLVER_KEY_ENV)
	}
	if c.PerAttemptTimeout <= 0 {
		c.PerAttemptTimeout = time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = time.Second
	}
	if c.PostSolveGrace < 0 {
		c.PostSolveGrace = 0
	}
	return c
}
