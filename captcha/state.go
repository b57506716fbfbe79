package captcha

import (
	"sort"
	"sync"
	"time"
)

// ResolutionState is the session-visible side of the solve machinery. One
// instance is shared between a session and its orchestrator. The
// orchestrator is the only writer, reads are safe from any goroutine.
//
// Pending turns true when a cycle starts and only turns false again when
// every detected challenge was solved or found absent. A cycle that ends
// with unsolved challenges leaves Pending set, the page is still gated.
type ResolutionState struct {
	mu      sync.RWMutex
	gen     uint64
	pending bool
	active  map[ChallengeType]struct{}
	last    *Outcome
	lastAt  time.Time
	changed chan struct{}
}

func NewResolutionState() *ResolutionState {
	return &ResolutionState{
		active:  make(map[ChallengeType]struct{}),
		changed: make(chan struct{}),
	}
}

// Pending reports whether unresolved challenges are known or a cycle is
// currently running.
func (s *ResolutionState) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// LastOutcome returns a copy of the most recent attempt outcome, nil
// before the first attempt.
func (s *ResolutionState) LastOutcome() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	out := *s.last
	return &out
}

// LastAttemptAt returns when the most recent attempt finished.
func (s *ResolutionState) LastAttemptAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAt
}

// ActiveChallenges returns the challenge types still unresolved, in a
// fixed order.
func (s *ResolutionState) ActiveChallenges() []ChallengeType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChallengeType, 0, len(s.active))
	for typ := range s.active {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// The writers below are generation guarded: a cycle identifies itself and
// writes from a superseded cycle are dropped, so late results cannot
// clobber fresh state.

func (s *ResolutionState) beginCycle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
	s.pending = true
	s.active = make(map[ChallengeType]struct{})
	s.notifyLocked()
}

func (s *ResolutionState) markDetected(gen uint64, challenges []DetectedChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	for _, ch := range challenges {
		s.active[ch.Type] = struct{}{}
	}
	s.notifyLocked()
}

func (s *ResolutionState) recordOutcome(gen uint64, typ ChallengeType, out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.last = &out
	s.lastAt = time.Now()
	if out.Status == StatusSolved || out.Status == StatusNotFound {
		delete(s.active, typ)
	}
	s.notifyLocked()
}

func (s *ResolutionState) endCycle(gen uint64, resolved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if resolved {
		s.pending = false
		s.active = make(map[ChallengeType]struct{})
	}
	s.notifyLocked()
}

func (s *ResolutionState) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// waitClear blocks until Pending turns false or the timeout passes. A non
// positive timeout checks once without waiting.
func (s *ResolutionState) waitClear(timeout time.Duration) bool {
	if timeout <= 0 {
		return !s.Pending()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		s.mu.RLock()
		pending := s.pending
		changed := s.changed
		s.mu.RUnlock()
		if !pending {
			return true
		}
		select {
		case <-changed:
		case <-timer.C:
			return false
		}
	}
}
