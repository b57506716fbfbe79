package undetected

import "errors"

var (
	// ErrInvalidURL is returned for navigation targets without a scheme
	// or host.
	ErrInvalidURL = errors.New("invalid_url")

	// ErrTimeoutResponse is returned when the server never answered the
	// navigation request.
	ErrTimeoutResponse = errors.New("timeout_response")

	// ErrTimeoutNavigation is returned when the server answered but the
	// page never finished loading.
	ErrTimeoutNavigation = errors.New("timeout_navigation")

	// ErrNoPageHTML is returned when the loaded page yields no DOM.
	ErrNoPageHTML = errors.New("no_page_html")
)
