package captcha

import (
	"context"
	"time"
)

// Page is the slice of a browser page the classifier and strategies need.
// The root package adapts a rod page to it, tests substitute a fake.
//
// Eval runs a JS arrow function on the page and returns its result as a
// string. Scripts used by this package always return strings, missing
// values come back as "".
type Page interface {
	// URL returns the current page address, "" when it cannot be read.
	URL() string

	// HTML returns the full serialized DOM.
	HTML() (string, error)

	// Has reports whether at least one element matches the selector.
	// It checks the current DOM and does not wait for the element.
	Has(selector string) (bool, error)

	// Attribute returns the named attribute of the first element matching
	// the selector, "" when the element or attribute is absent.
	Attribute(selector, name string) (string, error)

	// Eval evaluates a JS function with the given arguments.
	Eval(js string, args ...any) (string, error)

	// Click moves the cursor to the first element matching the selector
	// and clicks it.
	Click(selector string) error

	// SetCookie stores a cookie for the current page origin.
	SetCookie(name, value string) error

	// Reload reloads the page and waits for the load event.
	Reload() error

	// WithTimeout returns a page whose operations abort after d.
	WithTimeout(d time.Duration) Page

	// WithContext returns a page whose operations abort with ctx.
	WithContext(ctx context.Context) Page
}
