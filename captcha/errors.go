package captcha

import "errors"

var (
	// ErrUnsupported marks a challenge type no registered strategy can take.
	ErrUnsupported = errors.New("unsupported_challenge")

	// ErrMissingCredential marks a strategy that cannot run because its
	// API credential is absent.
	ErrMissingCredential = errors.New("missing_credential")

	// ErrNoSiteKey marks a challenge whose site key could not be read from
	// the page, which makes remote solving impossible.
	ErrNoSiteKey = errors.New("sitekey_not_found")
)

// permanentError wraps a cause that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The orchestrator stops the
// retry loop for the current strategy when it sees one.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries a Permanent marker anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// retryable reports whether the attempt behind out may be repeated.
// Timeouts and transient failures retry. Permanent failures, missing
// credentials and unsupported challenges terminate immediately.
func retryable(out Outcome) bool {
	switch out.Status {
	case StatusTimedOut:
		return true
	case StatusFailed:
		if out.Err == nil {
			return true
		}
		if IsPermanent(out.Err) ||
			errors.Is(out.Err, ErrUnsupported) ||
			errors.Is(out.Err, ErrMissingCredential) {
			return false
		}
		return true
	default:
		return false
	}
}
