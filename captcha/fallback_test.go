package captcha

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackWithoutCredentialMakesNoRequests(t *testing.T) {
	stub := &capsolverStub{create: map[string]any{"errorId": 0, "taskId": "t"}}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, ""), nil)
	page := newFakePage("https://example.com", `<html></html>`)

	out := strategy.Attempt(context.Background(), page, detected(HCaptcha))

	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, "missing_credential", out.Reason)
	require.ErrorIs(t, out.Err, ErrMissingCredential)
	require.False(t, retryable(out))
	require.Zero(t, stub.count())
	require.Zero(t, page.writeCount())
}

func TestFallbackSkipsAlreadyFilledResponse(t *testing.T) {
	stub := &capsolverStub{create: map[string]any{"errorId": 0, "taskId": "t"}}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, "cap-key"), nil)

	page := newFakePage("https://example.com", `<html></html>`)
	page.evalFn = func(js string, args ...any) (string, error) {
		if js == readFieldValueJS {
			return "token-from-last-attempt", nil
		}
		return "", nil
	}

	out := strategy.Attempt(context.Background(), page, detected(Turnstile))
	require.Equal(t, StatusSolved, out.Status)
	require.Zero(t, stub.count(), "a filled response field needs no new task")
}

func TestBuildTask(t *testing.T) {
	strategy := NewCapsolverStrategy(NewCapsolverClient("cap-key", nil), nil)
	page := newFakePage("https://example.com/login", `<html></html>`)

	t.Run("hcaptcha", func(t *testing.T) {
		task, err := strategy.buildTask(page, detected(HCaptcha))
		require.NoError(t, err)
		require.Equal(t, "HCaptchaTaskProxyLess", task["type"])
		require.Equal(t, "https://example.com/login", task["websiteURL"])
		require.Equal(t, "test-sitekey", task["websiteKey"])
	})

	t.Run("hcaptcha without sitekey", func(t *testing.T) {
		_, err := strategy.buildTask(page, DetectedChallenge{Type: HCaptcha})
		require.ErrorIs(t, err, ErrNoSiteKey)
		require.True(t, IsPermanent(err))
	})

	t.Run("funcaptcha", func(t *testing.T) {
		task, err := strategy.buildTask(page, detected(FunCaptcha))
		require.NoError(t, err)
		require.Equal(t, "FunCaptchaTaskProxyLess", task["type"])
		require.Equal(t, "test-sitekey", task["websitePublicKey"])
	})

	t.Run("turnstile", func(t *testing.T) {
		task, err := strategy.buildTask(page, detected(Turnstile))
		require.NoError(t, err)
		require.Equal(t, "AntiTurnstileTaskProxyLess", task["type"])
		require.Equal(t, "test-sitekey", task["websiteKey"])
	})

	t.Run("geetest reads runtime parameters", func(t *testing.T) {
		p := newFakePage("https://example.com", `<html></html>`)
		p.evalFn = func(js string, args ...any) (string, error) {
			if js == readGeeTestParamsJS {
				return "gt-value:challenge-value", nil
			}
			return "", nil
		}
		task, err := strategy.buildTask(p, detected(GeeTest))
		require.NoError(t, err)
		require.Equal(t, "GeeTestTaskProxyLess", task["type"])
		require.Equal(t, "gt-value", task["gt"])
		require.Equal(t, "challenge-value", task["challenge"])
	})

	t.Run("geetest without parameters", func(t *testing.T) {
		_, err := strategy.buildTask(newFakePage("https://example.com", `<html></html>`), DetectedChallenge{Type: GeeTest})
		require.Error(t, err)
		require.True(t, IsPermanent(err))
	})

	t.Run("image", func(t *testing.T) {
		p := newFakePage("https://example.com", `<html><img src="/captcha.png"></html>`)
		p.evalFn = func(js string, args ...any) (string, error) {
			if js == captureImageJS {
				return "aGVsbG8=", nil
			}
			return "", nil
		}
		task, err := strategy.buildTask(p, detected(ImageCaptcha))
		require.NoError(t, err)
		require.Equal(t, "ImageToTextTask", task["type"])
		require.Equal(t, "aGVsbG8=", task["body"])
	})

	t.Run("image gone from page", func(t *testing.T) {
		p := newFakePage("https://example.com", `<html><p>nothing</p></html>`)
		_, err := strategy.buildTask(p, DetectedChallenge{Type: ImageCaptcha})
		require.ErrorIs(t, err, errChallengeGone)
	})

	t.Run("cookie families", func(t *testing.T) {
		for typ, want := range map[ChallengeType]string{
			CloudflareBotCheck:  "AntiCloudflareTask",
			CloudFrontBotCheck:  "AntiAwsWafTaskProxyLess",
			GenericBotDetection: "AntiBotCookieTask",
		} {
			task, err := strategy.buildTask(page, detected(typ))
			require.NoError(t, err)
			require.Equal(t, want, task["type"])
		}
	})

	t.Run("recaptcha is not a fallback job", func(t *testing.T) {
		_, err := strategy.buildTask(page, detected(RecaptchaV2))
		require.ErrorIs(t, err, ErrUnsupported)
		require.True(t, IsPermanent(err))
	})
}

func TestFallbackAppliesTokenSolution(t *testing.T) {
	stub := &capsolverStub{
		create: map[string]any{"errorId": 0, "taskId": "task-7"},
		results: []map[string]any{
			{"errorId": 0, "status": "ready", "solution": map[string]any{"token": "h-token"}},
		},
	}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, "cap-key"), nil)
	page := newFakePage("https://example.com", `<html></html>`)

	out := strategy.Attempt(context.Background(), page, detected(HCaptcha))

	require.Equal(t, StatusSolved, out.Status)
	require.True(t, page.evaluated(injectHCaptchaJS), "the token must land in the widget")
}

func TestFallbackAppliesCookieSolution(t *testing.T) {
	stub := &capsolverStub{
		create: map[string]any{"errorId": 0, "taskId": "task-8"},
		results: []map[string]any{
			{"errorId": 0, "status": "ready", "solution": map[string]any{
				"cookies": map[string]any{"cf_clearance": "clear-123"},
			}},
		},
	}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, "cap-key"), nil)
	page := newFakePage("https://blocked.example", `<html></html>`)

	out := strategy.Attempt(context.Background(), page, detected(CloudflareBotCheck))

	require.Equal(t, StatusSolved, out.Status)
	require.Equal(t, "clear-123", page.cookies["cf_clearance"])
	require.Equal(t, 1, page.reloads, "clearance cookies only work after a reload")
}

func TestFallbackAppliesImageSolution(t *testing.T) {
	stub := &capsolverStub{
		create: map[string]any{"errorId": 0, "taskId": "task-9"},
		results: []map[string]any{
			{"errorId": 0, "status": "ready", "solution": map[string]any{"text": "K7X2F"}},
		},
	}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, "cap-key"), nil)

	page := newFakePage("https://example.com", `<html><img src="/captcha.png"></html>`)
	var typed string
	page.evalFn = func(js string, args ...any) (string, error) {
		switch js {
		case captureImageJS:
			return "aGVsbG8=", nil
		case injectTextJS:
			typed = args[1].(string)
			return "1", nil
		}
		return "", nil
	}

	out := strategy.Attempt(context.Background(), page, detected(ImageCaptcha))

	require.Equal(t, StatusSolved, out.Status)
	require.Equal(t, "K7X2F", typed)
}

func TestFallbackEmptySolutionFails(t *testing.T) {
	stub := &capsolverStub{
		create: map[string]any{"errorId": 0, "taskId": "task-10"},
		results: []map[string]any{
			{"errorId": 0, "status": "ready", "solution": map[string]any{}},
		},
	}
	strategy := NewCapsolverStrategy(newStubClient(t, stub, "cap-key"), nil)
	page := newFakePage("https://example.com", `<html></html>`)

	out := strategy.Attempt(context.Background(), page, detected(Turnstile))

	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, "apply_failed", out.Reason)
}
