package captcha

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase is the observable position of the orchestrator in its cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSolving
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseSolving:
		return "solving"
	default:
		return "unknown"
	}
}

// scanHeadroom is added on top of the settle window when bounding one
// classifier run.
const scanHeadroom = 5 * time.Second

type scanner interface {
	Classify(ctx context.Context, page Page) ([]DetectedChallenge, error)
}

type strategySource interface {
	StrategiesFor(typ ChallengeType) []Strategy
}

// Orchestrator runs the scan-then-solve cycle: classify the page, look up
// strategies for each finding, execute them under the retry and timeout
// envelope, record everything in the shared ResolutionState. At most one
// cycle runs at a time, overlapping triggers either skip or wait.
//
// Nothing an orchestrator does ever propagates as an error to the caller.
// A cycle ends resolved or exhausted, both are reported through state and
// logs, and the surrounding automation carries on either way.
type Orchestrator struct {
	cfg      Config
	scan     scanner
	registry strategySource
	state    *ResolutionState
	log      *zap.Logger

	slot  chan struct{}
	phase atomic.Int32
	gen   atomic.Uint64
}

// NewOrchestrator wires a classifier and the strategy registry from cfg.
// The caller keeps the state reference for reading, the orchestrator is
// its only writer.
func NewOrchestrator(cfg Config, state *ResolutionState, log *zap.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if state == nil {
		state = NewResolutionState()
	}
	return &Orchestrator{
		cfg:      cfg,
		scan:     NewClassifier(cfg, log),
		registry: NewRegistry(cfg, log),
		state:    state,
		log:      log,
		slot:     make(chan struct{}, 1),
	}
}

// Phase returns where the orchestrator currently is.
func (o *Orchestrator) Phase() Phase {
	return Phase(o.phase.Load())
}

// State returns the shared resolution state.
func (o *Orchestrator) State() *ResolutionState {
	return o.state
}

// HandlePostNavigation starts a cycle for a freshly loaded page without
// blocking the caller. When a cycle is already in flight the call is a
// no-op, the running cycle covers the page.
func (o *Orchestrator) HandlePostNavigation(page Page) {
	if !o.tryAcquire() {
		o.log.Debug("solve cycle already in flight, skipping")
		return
	}
	go func() {
		defer o.release()
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("solve cycle panicked", zap.Any("panic", r))
			}
		}()
		o.runCycle(context.Background(), page)
	}()
}

// SolveManually runs one synchronous cycle bounded by ctx. It returns true
// iff at least one challenge was found and every found challenge was
// solved. A page without challenges returns false.
func (o *Orchestrator) SolveManually(ctx context.Context, page Page) bool {
	select {
	case o.slot <- struct{}{}:
	case <-ctx.Done():
		o.log.Warn("manual solve did not start before its deadline")
		return false
	}
	defer o.release()

	res := o.runCycle(ctx, page)
	return res.found && res.solved
}

// WaitForResolution blocks until no challenge is pending or the timeout
// passes, and reports whether the page is clear.
func (o *Orchestrator) WaitForResolution(timeout time.Duration) bool {
	return o.state.waitClear(timeout)
}

func (o *Orchestrator) tryAcquire() bool {
	select {
	case o.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) release() {
	<-o.slot
}

type cycleResult struct {
	found    bool // the scan reported at least one challenge
	solved   bool // every found challenge reached Solved
	resolved bool // every found challenge was solved or absent
}

// runCycle is the Scanning then Solving pass. The caller holds the cycle
// slot.
func (o *Orchestrator) runCycle(ctx context.Context, page Page) cycleResult {
	gen := o.gen.Add(1)
	log := o.log.With(
		zap.String("cycle", uuid.NewString()),
		zap.String("url", page.URL()))

	o.phase.Store(int32(PhaseScanning))
	defer o.phase.Store(int32(PhaseIdle))
	o.state.beginCycle(gen)

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.SettleTimeout+scanHeadroom)
	challenges, err := o.scan.Classify(scanCtx, page)
	cancel()
	if err != nil {
		log.Warn("challenge scan failed", zap.Error(err))
	}
	if len(challenges) == 0 {
		o.state.endCycle(gen, true)
		log.Debug("no challenges detected")
		return cycleResult{resolved: true}
	}

	o.phase.Store(int32(PhaseSolving))
	o.state.markDetected(gen, challenges)
	log.Info("challenges detected", zap.Int("count", len(challenges)))

	solved := true
	resolved := true
	anySolved := false
	for _, ch := range challenges {
		if ctx.Err() != nil {
			solved, resolved = false, false
			break
		}
		out := o.solveChallenge(ctx, log, page, ch)
		o.state.recordOutcome(gen, ch.Type, out)
		switch out.Status {
		case StatusSolved:
			anySolved = true
		case StatusNotFound:
			solved = false
		default:
			solved = false
			resolved = false
		}
	}

	// Freshly injected tokens need a moment before the page reacts.
	if resolved && anySolved && o.cfg.PostSolveGrace > 0 {
		select {
		case <-time.After(o.cfg.PostSolveGrace):
		case <-ctx.Done():
		}
	}

	o.state.endCycle(gen, resolved)
	if resolved {
		log.Info("challenges resolved", zap.Bool("all_solved", solved))
	} else {
		log.Warn("challenges exhausted",
			zap.Any("remaining", o.state.ActiveChallenges()))
	}
	return cycleResult{found: true, solved: solved, resolved: resolved}
}

// solveChallenge walks the strategy row of one challenge. Each strategy
// gets up to MaxRetries+1 attempts on retryable outcomes, the first Solved
// wins, NotFound hands over to the next strategy.
func (o *Orchestrator) solveChallenge(ctx context.Context, log *zap.Logger, page Page, ch DetectedChallenge) Outcome {
	log = log.With(zap.String("challenge", ch.Type.String()))
	strategies := o.registry.StrategiesFor(ch.Type)
	if len(strategies) == 0 {
		log.Warn("no strategy registered for challenge")
		return Failed("unsupported", ErrUnsupported)
	}

	var last Outcome
	for _, st := range strategies {
		for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
			if ctx.Err() != nil {
				return TimedOut()
			}
			out := o.runAttempt(ctx, st, page, ch)
			log.Debug("attempt finished",
				zap.String("strategy", st.Name()),
				zap.Int("attempt", attempt+1),
				zap.String("status", out.Status.String()),
				zap.Error(out.Err))
			if out.Status == StatusSolved {
				return out
			}
			last = out
			if out.Status == StatusNotFound || !retryable(out) {
				break
			}
		}
	}
	return last
}

// runAttempt runs one strategy attempt under the per-attempt timeout. On
// timeout the attempt is abandoned: its late result lands in a buffered
// channel nobody reads, so it can never touch the state of a newer cycle.
func (o *Orchestrator) runAttempt(ctx context.Context, st Strategy, page Page, ch DetectedChallenge) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.PerAttemptTimeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("strategy panicked",
					zap.String("strategy", st.Name()),
					zap.Any("panic", r))
				done <- Failed("panic", fmt.Errorf("strategy panic: %v", r))
			}
		}()
		done <- st.Attempt(attemptCtx, page.WithContext(attemptCtx), ch)
	}()

	select {
	case out := <-done:
		return out
	case <-attemptCtx.Done():
		return TimedOut()
	}
}
