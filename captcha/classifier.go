package captcha

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// probe is one entry of the detection table. A challenge is reported when
// any selector matches, or every require selector matches, or a marker
// substring occurs in the raw document, or the optional runtime check
// returns "1". Veto markers suppress the probe entirely.
type probe struct {
	typ         ChallengeType
	selectors   []string
	require     []string
	markers     []string
	veto        []string
	evalJS      string
	keySelector string
	keyAttr     string
	keyPattern  *regexp.Regexp
}

// challengeProbes is scanned in order, which keeps repeated classifications
// of the same page deterministic.
var challengeProbes = []probe{
	{
		typ: RecaptchaV2,
		selectors: []string{
			`.g-recaptcha[data-sitekey]`,
			`iframe[src*="recaptcha/api2/anchor"]`,
			`iframe[src*="recaptcha/enterprise/anchor"]`,
		},
		keySelector: `.g-recaptcha`,
		keyAttr:     "data-sitekey",
		keyPattern:  regexp.MustCompile(`recaptcha/(?:api2|enterprise)/anchor\?[^"']*[?&]k=([0-9A-Za-z_-]{20,})`),
	},
	{
		typ:        RecaptchaV3,
		selectors:  []string{`.grecaptcha-badge`},
		markers:    []string{"recaptcha/api.js?render=", "recaptcha/enterprise.js?render="},
		veto:       []string{"render=explicit"},
		evalJS:     checkRecaptchaV3JS,
		keyPattern: regexp.MustCompile(`recaptcha/(?:api|enterprise)\.js\?render=([0-9A-Za-z_-]{20,})`),
	},
	{
		typ: HCaptcha,
		selectors: []string{
			`.h-captcha[data-sitekey]`,
			`iframe[src*="hcaptcha.com"]`,
		},
		markers:     []string{"hcaptcha.com/1/api.js"},
		keySelector: `.h-captcha`,
		keyAttr:     "data-sitekey",
	},
	{
		typ: FunCaptcha,
		selectors: []string{
			`#funcaptcha`,
			`iframe[src*="arkoselabs.com"]`,
			`input[name="fc-token"]`,
		},
		markers:     []string{"arkoselabs.com"},
		keySelector: `[data-pkey]`,
		keyAttr:     "data-pkey",
		keyPattern:  regexp.MustCompile(`arkoselabs\.com/v2/([0-9A-Za-z_-]{8,})/api\.js`),
	},
	{
		typ: GeeTest,
		selectors: []string{
			`.geetest_holder`,
			`.geetest_radar_tip`,
			`.geetest_btn`,
		},
		markers:    []string{"initgeetest", "static.geetest.com"},
		evalJS:     checkGeeTestJS,
		keyPattern: regexp.MustCompile(`gt["']?\s*[:=]\s*["']([0-9a-f]{32})["']`),
	},
	{
		typ: Turnstile,
		selectors: []string{
			`.cf-turnstile`,
			`#turnstile-wrapper`,
			`iframe[src*="challenges.cloudflare.com"]`,
		},
		markers:     []string{"challenges.cloudflare.com/turnstile"},
		keySelector: `.cf-turnstile`,
		keyAttr:     "data-sitekey",
		keyPattern:  regexp.MustCompile(`sitekey["']?\s*[:=]\s*["'](0x[0-9A-Za-z_-]{10,})["']`),
	},
	{
		typ: ImageCaptcha,
		require: []string{
			`img[src*="captcha"]`,
			`input[name*="captcha"], input[id*="captcha"]`,
		},
	},
	{
		typ: CloudflareBotCheck,
		selectors: []string{
			`#cf-wrapper`,
			`#challenge-running`,
			`#challenge-form`,
			`#challenge-stage`,
		},
		markers: []string{"/cdn-cgi/challenge-platform/", "_cf_chl_opt", "cf-browser-verification"},
	},
	{
		typ:     CloudFrontBotCheck,
		markers: []string{"awswaf", "x-amzn-waf"},
	},
	{
		typ: GenericBotDetection,
		markers: []string{
			"verify you are human",
			"unusual traffic",
			"bot detection",
			"datadome",
			"perimeterx",
			"px-captcha",
			"checking your browser",
		},
	},
}

// Classifier scans a page for the challenge signatures above. Scanning only
// reads the page, it never clicks, navigates or injects anything.
type Classifier struct {
	settle time.Duration
	poll   time.Duration
	log    *zap.Logger
}

func NewClassifier(cfg Config, log *zap.Logger) *Classifier {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	poll := cfg.SettleTimeout / 4
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}
	return &Classifier{settle: cfg.SettleTimeout, poll: poll, log: log}
}

// Classify scans the page and returns every challenge found, in table
// order. An empty page is re-scanned within the settle window before an
// empty result is trusted, so challenges injected just after load are
// still caught.
func (c *Classifier) Classify(ctx context.Context, page Page) ([]DetectedChallenge, error) {
	deadline := time.Now().Add(c.settle)
	for {
		found, err := c.scan(page)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			c.log.Debug("challenges detected",
				zap.Int("count", len(found)),
				zap.String("url", page.URL()))
			return found, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

func (c *Classifier) scan(page Page) ([]DetectedChallenge, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(html)

	var found []DetectedChallenge
	for _, p := range challengeProbes {
		// The generic probe matches prose, not widgets. A page already
		// classified as a concrete challenge is not also generic.
		if p.typ == GenericBotDetection && len(found) > 0 {
			continue
		}
		if p.vetoed(lower) {
			continue
		}
		sel, ok := p.match(doc, lower)
		if !ok && p.evalJS != "" {
			if res, err := page.Eval(p.evalJS); err == nil && res == "1" {
				ok = true
			}
		}
		if !ok {
			continue
		}
		found = append(found, DetectedChallenge{
			Type:       p.typ,
			Selector:   sel,
			SiteKey:    p.siteKey(doc, html),
			DetectedAt: time.Now(),
		})
	}
	return found, nil
}

func (p probe) vetoed(lower string) bool {
	for _, v := range p.veto {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func (p probe) match(doc *goquery.Document, lower string) (string, bool) {
	if len(p.require) > 0 {
		for _, sel := range p.require {
			if doc.Find(sel).Length() == 0 {
				return "", false
			}
		}
		return p.require[0], true
	}
	for _, sel := range p.selectors {
		if doc.Find(sel).Length() > 0 {
			return sel, true
		}
	}
	for _, m := range p.markers {
		if strings.Contains(lower, m) {
			return "", true
		}
	}
	return "", false
}

func (p probe) siteKey(doc *goquery.Document, html string) string {
	if p.keySelector != "" {
		if v, ok := doc.Find(p.keySelector).Attr(p.keyAttr); ok && v != "" {
			return v
		}
	}
	if p.keyPattern != nil {
		if m := p.keyPattern.FindStringSubmatch(html); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
