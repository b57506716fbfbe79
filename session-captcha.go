package undetected

import (
	"context"
	"time"

	"github.com/x/undetected/captcha"
)

// Default bounds of the manual captcha operations.
const (
	DEFAULT_MANUAL_SOLVE_TIMEOUT = 30 * time.Second
	DEFAULT_RESOLUTION_WAIT      = 60 * time.Second
)

// CaptchaSolver is the solving engine a session drives. The default is
// the orchestrator from the captcha package, tests swap in fakes.
type CaptchaSolver interface {
	HandlePostNavigation(page captcha.Page)
	SolveManually(ctx context.Context, page captcha.Page) bool
	WaitForResolution(timeout time.Duration) bool
	State() *captcha.ResolutionState
}

// SetCaptchaSolver replaces the solving engine.
func (s *Session) SetCaptchaSolver(solver CaptchaSolver) {
	s.cptchSolver = solver
}

// hookPostNavigation forwards a finished navigation to the solver. While
// auto solving is off nothing is created and nothing is scanned.
func (s *Session) hookPostNavigation() {
	if !s.Model.AutoSolveCaptchas {
		return
	}
	s.solver().HandlePostNavigation(s.solverPage())
}

// solver builds the solving engine on first use so disabled sessions
// never pay for it.
func (s *Session) solver() CaptchaSolver {
	if s.cptchSolver == nil {
		s.cptchSolver = captcha.NewOrchestrator(
			s.Model.solverConfig(),
			captcha.NewResolutionState(),
			s.log,
		)
		s.log.Debug("captcha solver created")
	}
	return s.cptchSolver
}

func (s *Session) solverPage() captcha.Page {
	return newRodPage(s.Page)
}

// SolveCaptchas scans the current page and solves what it finds, bounded
// by the timeout. It returns true iff at least one challenge was found
// and every found challenge was solved. Zero timeout means 30 seconds.
func (s *Session) SolveCaptchas(timeout time.Duration) bool {
	if s.Page == nil {
		return false
	}
	if timeout <= 0 {
		timeout = DEFAULT_MANUAL_SOLVE_TIMEOUT
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.solver().SolveManually(ctx, s.solverPage())
}

// WaitForCaptchaResolution blocks until no challenge is pending or the
// timeout passes, and reports whether the page is clear. Zero timeout
// means 60 seconds.
func (s *Session) WaitForCaptchaResolution(timeout time.Duration) bool {
	if s.cptchSolver == nil {
		return true
	}
	if timeout <= 0 {
		timeout = DEFAULT_RESOLUTION_WAIT
	}
	return s.cptchSolver.WaitForResolution(timeout)
}

// CaptchaState exposes the shared resolution state for reading.
func (s *Session) CaptchaState() *captcha.ResolutionState {
	return s.solver().State()
}
