package captcha

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// IMAGE_ANSWER_SELECTOR locates the text input next to a classic image
// captcha.
const IMAGE_ANSWER_SELECTOR = `input[name*="captcha"], input[id*="captcha"]`

var errChallengeGone = errors.New("challenge_gone")

// CapsolverStrategy hands a challenge to the Capsolver service and applies
// the returned solution to the page. It covers every family the browser
// strategy does not: token widgets get their token injected, anti-bot
// checks get their clearance cookies set and the page reloaded.
type CapsolverStrategy struct {
	client *CapsolverClient
	log    *zap.Logger
}

func NewCapsolverStrategy(client *CapsolverClient, log *zap.Logger) *CapsolverStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &CapsolverStrategy{client: client, log: log}
}

func (s *CapsolverStrategy) Name() string { return "capsolver" }

func (s *CapsolverStrategy) Attempt(ctx context.Context, page Page, ch DetectedChallenge) Outcome {
	// Without a credential no request leaves the process.
	if s.client == nil || !s.client.HasKey() {
		return Failed("missing_credential", Permanent(ErrMissingCredential))
	}

	// A response field filled by an earlier attempt still counts.
	if sel := responseFieldSelector(ch.Type); sel != "" {
		if v, err := page.Eval(readFieldValueJS, sel); err == nil && v != "" {
			return Solved()
		}
	}

	task, err := s.buildTask(page, ch)
	if err != nil {
		if errors.Is(err, errChallengeGone) {
			return NotFound()
		}
		return Failed("task_build_failed", err)
	}

	sol, err := s.client.Solve(ctx, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return TimedOut()
		}
		return Failed("api_error", err)
	}

	if err := s.apply(page, ch, sol); err != nil {
		return Failed("apply_failed", err)
	}
	s.log.Debug("capsolver solution applied", zap.String("challenge", ch.Type.String()))
	return Solved()
}

// buildTask maps a detected challenge onto the matching Capsolver task
// payload. Proxyless task variants are used throughout, the service does
// its own egress.
func (s *CapsolverStrategy) buildTask(page Page, ch DetectedChallenge) (map[string]any, error) {
	url := page.URL()
	switch ch.Type {
	case HCaptcha:
		if ch.SiteKey == "" {
			return nil, Permanent(ErrNoSiteKey)
		}
		return map[string]any{
			"type":       "HCaptchaTaskProxyLess",
			"websiteURL": url,
			"websiteKey": ch.SiteKey,
		}, nil
	case FunCaptcha:
		if ch.SiteKey == "" {
			return nil, Permanent(ErrNoSiteKey)
		}
		return map[string]any{
			"type":             "FunCaptchaTaskProxyLess",
			"websiteURL":       url,
			"websitePublicKey": ch.SiteKey,
		}, nil
	case GeeTest:
		gt, challenge := s.geeTestParams(page, ch)
		if gt == "" || challenge == "" {
			return nil, Permanent(errors.New("geetest parameters not found"))
		}
		return map[string]any{
			"type":       "GeeTestTaskProxyLess",
			"websiteURL": url,
			"gt":         gt,
			"challenge":  challenge,
		}, nil
	case Turnstile:
		if ch.SiteKey == "" {
			return nil, Permanent(ErrNoSiteKey)
		}
		return map[string]any{
			"type":       "AntiTurnstileTaskProxyLess",
			"websiteURL": url,
			"websiteKey": ch.SiteKey,
		}, nil
	case ImageCaptcha:
		sel := ch.Selector
		if sel == "" {
			sel = `img[src*="captcha"]`
		}
		img, err := page.Eval(captureImageJS, sel)
		if err != nil {
			return nil, err
		}
		if img == "" {
			if has, _ := page.Has(sel); !has {
				return nil, errChallengeGone
			}
			return nil, errors.New("captcha image not readable")
		}
		return map[string]any{
			"type": "ImageToTextTask",
			"body": img,
		}, nil
	case CloudflareBotCheck:
		return map[string]any{
			"type":       "AntiCloudflareTask",
			"websiteURL": url,
		}, nil
	case CloudFrontBotCheck:
		return map[string]any{
			"type":       "AntiAwsWafTaskProxyLess",
			"websiteURL": url,
		}, nil
	case GenericBotDetection:
		return map[string]any{
			"type":       "AntiBotCookieTask",
			"websiteURL": url,
		}, nil
	default:
		return nil, Permanent(ErrUnsupported)
	}
}

func (s *CapsolverStrategy) geeTestParams(page Page, ch DetectedChallenge) (gt, challenge string) {
	if res, err := page.Eval(readGeeTestParamsJS); err == nil && res != "" {
		if i := strings.IndexByte(res, ':'); i > 0 {
			return res[:i], res[i+1:]
		}
	}
	return ch.SiteKey, ""
}

func (s *CapsolverStrategy) apply(page Page, ch DetectedChallenge, sol Solution) error {
	switch ch.Type {
	case HCaptcha, FunCaptcha, Turnstile:
		token := sol.Token()
		if token == "" {
			return errors.New("empty solution token")
		}
		return injectToken(page, ch.Type, token)
	case GeeTest:
		challenge, validate, seccode := sol.GeeTest()
		if validate == "" {
			return errors.New("empty geetest validation")
		}
		_, err := page.Eval(injectGeeTestJS, challenge, validate, seccode)
		return err
	case ImageCaptcha:
		text := sol.Text()
		if text == "" {
			return errors.New("empty image text")
		}
		res, err := page.Eval(injectTextJS, IMAGE_ANSWER_SELECTOR, text)
		if err != nil {
			return err
		}
		if res != "1" {
			return errors.New("captcha answer input not found")
		}
		return nil
	case CloudflareBotCheck, CloudFrontBotCheck, GenericBotDetection:
		cookies := sol.Cookies()
		if len(cookies) == 0 {
			return errors.New("no clearance cookies in solution")
		}
		if err := applyCookies(page, cookies); err != nil {
			return err
		}
		return page.Reload()
	default:
		return ErrUnsupported
	}
}

// responseFieldSelector returns the field a solved token lands in, "" for
// families that are cleared through cookies instead.
func responseFieldSelector(typ ChallengeType) string {
	switch typ {
	case HCaptcha:
		return `textarea[name="h-captcha-response"]`
	case Turnstile:
		return `input[name="cf-turnstile-response"]`
	case FunCaptcha:
		return `input[name="fc-token"], #fc-token`
	case ImageCaptcha:
		return IMAGE_ANSWER_SELECTOR
	}
	return ""
}
