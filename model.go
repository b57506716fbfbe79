package undetected

import (
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/x/undetected/captcha"
)

// Model holds every behaviour switch of a session. Build it by hand or
// start from DefaultModel and override what you need.
type Model struct {
	// Chromium window visible
	Visible bool `json:"visible"`

	// Attach to the system Chrome profile instead of launching the bundled browser
	UseSystemChrome bool `json:"use_system_chrome"`

	// Load images
	ShowImages bool `json:"show_images"`

	// Emulate a mobile viewport
	Mobile bool `json:"mobile"`

	// Navigation timeout in seconds, 0 means one minute
	NavigationTimeout int `json:"navigation_timeout"`

	// Lifecycle event that counts as loaded:
	// 0 DOMContentLoaded, 1 network almost idle, 2 network idle, 3 load
	NavigationWaitfor int `json:"navigation_waitfor"`

	// Wait for this selector instead of a lifecycle event
	NavigationSelector string `json:"navigation_selector"`

	// Pause in seconds before navigating on an already open client
	DelayBeforeNavigate int `json:"delay_before_navigate"`

	// Pause in seconds after load before the page is read
	DelayBeforeRead int `json:"delay_before_read"`

	// Script evaluated once on a freshly created page
	PreScript string `json:"pre_script"`

	// Scan for captchas after every navigation and solve what is found
	AutoSolveCaptchas bool `json:"auto_solve_captchas"`

	// Capsolver key for the fallback solver, CAPSOLVER_API_KEY when empty
	CapsolverAPIKey string `json:"capsolver_api_key"`

	// Bound of one solving attempt in seconds, 0 means one minute
	SolveTimeout int `json:"solve_timeout"`

	// Retries per solving strategy, negative disables retrying
	MaxSolveRetries int `json:"max_solve_retries"`
}

// DefaultModel is the usual setup: headless, images on, captchas solved
// automatically.
func DefaultModel() *Model {
	return &Model{
		ShowImages:        true,
		AutoSolveCaptchas: true,
		MaxSolveRetries:   2,
	}
}

func (m *Model) navigationTimeout() time.Duration {
	if m.NavigationTimeout > 0 {
		return time.Duration(m.NavigationTimeout) * time.Second
	}
	return time.Minute
}

// pageLoadEvent maps the waitfor switch onto a lifecycle event name.
func (m *Model) pageLoadEvent() proto.PageLifecycleEventName {
	switch m.NavigationWaitfor {
	case 1:
		return proto.PageLifecycleEventNameNetworkAlmostIdle
	case 2:
		return proto.PageLifecycleEventNameNetworkIdle
	case 3:
		return proto.PageLifecycleEventNameLoad
	default:
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
}

// solverConfig translates the model into the solver configuration.
func (m *Model) solverConfig() captcha.Config {
	cfg := captcha.DefaultConfig()
	cfg.AutoSolve = m.AutoSolveCaptchas
	cfg.FallbackAPIKey = m.CapsolverAPIKey
	if m.SolveTimeout > 0 {
		cfg.PerAttemptTimeout = time.Duration(m.SolveTimeout) * time.Second
	}
	if m.MaxSolveRetries != 0 {
		cfg.MaxRetries = m.MaxSolveRetries
	}
	return cfg
}
