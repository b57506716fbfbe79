package captcha

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Selectors of the reCAPTCHA widget and its checkbox frame.
const (
	RECAPTCHA_WIDGET_SELECTOR = `.g-recaptcha`
	RECAPTCHA_ANCHOR_SELECTOR = `iframe[src*="recaptcha/api2/anchor"], iframe[src*="recaptcha/enterprise/anchor"]`
)

// anchorRenderWait bounds how long a v2 attempt waits for the checkbox
// frame of an already detected widget to appear.
const anchorRenderWait = 3 * time.Second

// RecaptchaStrategy resolves reCAPTCHA v2 and v3 with browser interaction
// only. For v2 it clicks the checkbox and waits for a token, for v3 it
// starts a token request through grecaptcha and harvests the result. No
// external service and no credential is involved.
type RecaptchaStrategy struct {
	log  *zap.Logger
	poll time.Duration
}

func NewRecaptchaStrategy(log *zap.Logger) *RecaptchaStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecaptchaStrategy{log: log, poll: 500 * time.Millisecond}
}

func (s *RecaptchaStrategy) Name() string { return "recaptcha" }

func (s *RecaptchaStrategy) Attempt(ctx context.Context, page Page, ch DetectedChallenge) Outcome {
	switch ch.Type {
	case RecaptchaV2:
		return s.solveV2(ctx, page)
	case RecaptchaV3:
		return s.solveV3(ctx, page, ch)
	default:
		return Failed("unsupported", ErrUnsupported)
	}
}

func (s *RecaptchaStrategy) solveV2(ctx context.Context, page Page) Outcome {
	// A token from an earlier attempt still counts.
	if token, err := page.Eval(readRecaptchaTokenJS); err == nil && token != "" {
		return Solved()
	}

	deadline := time.Now().Add(anchorRenderWait)
	for {
		has, err := page.Has(RECAPTCHA_ANCHOR_SELECTOR)
		if err != nil {
			return Failed("page_error", err)
		}
		if has {
			break
		}
		if widget, _ := page.Has(RECAPTCHA_WIDGET_SELECTOR); !widget {
			return NotFound()
		}
		if time.Now().After(deadline) {
			return Failed("anchor_not_rendered", nil)
		}
		select {
		case <-ctx.Done():
			return TimedOut()
		case <-time.After(s.poll):
		}
	}

	if err := page.Click(RECAPTCHA_ANCHOR_SELECTOR); err != nil {
		return Failed("click_failed", err)
	}
	s.log.Debug("recaptcha checkbox clicked")

	for {
		select {
		case <-ctx.Done():
			return TimedOut()
		case <-time.After(s.poll):
		}
		if token, err := page.Eval(readRecaptchaTokenJS); err == nil && token != "" {
			return Solved()
		}
		// An image grid means the checkbox path is closed. Image
		// recognition is out of scope here, so give up for good.
		if grid, err := page.Eval(checkRecaptchaImageJS); err == nil && grid == "1" {
			return Failed("image_challenge", Permanent(errors.New("recaptcha image grid shown")))
		}
	}
}

func (s *RecaptchaStrategy) solveV3(ctx context.Context, page Page, ch DetectedChallenge) Outcome {
	if ch.SiteKey == "" {
		return Failed("sitekey_not_found", Permanent(ErrNoSiteKey))
	}
	started, err := page.Eval(startRecaptchaV3JS, ch.SiteKey, "")
	if err != nil {
		return Failed("page_error", err)
	}
	if started != "1" {
		// grecaptcha not ready yet, worth a retry.
		return Failed("execute_failed", nil)
	}

	for {
		select {
		case <-ctx.Done():
			return TimedOut()
		case <-time.After(s.poll):
		}
		token, err := page.Eval(readHarvestedTokenJS)
		if err != nil {
			return Failed("page_error", err)
		}
		if token != "" {
			if err := injectToken(page, RecaptchaV3, token); err != nil {
				return Failed("inject_failed", err)
			}
			return Solved()
		}
	}
}
