package captcha

import "context"

// Strategy is one way of getting a challenge out of the way. Attempts are
// idempotent, an already solved challenge comes back Solved without redoing
// the work. Attempt honors ctx and returns instead of blocking past it.
type Strategy interface {
	// Name identifies the strategy in logs and outcomes.
	Name() string

	// Attempt tries to resolve the given challenge on the page once.
	Attempt(ctx context.Context, page Page, ch DetectedChallenge) Outcome
}
