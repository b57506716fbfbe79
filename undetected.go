// Package undetected drives a stealth Chromium session that keeps working
// behind captcha walls. Every navigation is scanned for challenges and
// known types are solved in the background, the caller reads the page as
// if nothing happened. See the captcha subpackage for the detection and
// solving machinery.
package undetected

import "go.uber.org/zap"

// NewSession builds a session from the model. The browser starts lazily
// on the first navigation. A nil model means DefaultModel, a nil logger
// keeps the session silent.
func NewSession(model *Model, log *zap.Logger) *Session {
	if model == nil {
		model = DefaultModel()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		Model: model,
		log:   log,
	}
}
