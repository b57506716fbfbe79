// Package captcha detects and resolves anti-bot challenges on live browser
// pages. Detection is read-only, solving goes through a fixed table of
// strategies and a single orchestrator owns the solve cycle.
package captcha

import "time"

// ChallengeType enumerates every challenge family the classifier can report.
type ChallengeType int

const (
	RecaptchaV2 ChallengeType = iota
	RecaptchaV3
	HCaptcha
	FunCaptcha
	GeeTest
	Turnstile
	ImageCaptcha
	CloudflareBotCheck
	CloudFrontBotCheck
	GenericBotDetection
)

// AllChallengeTypes is the scan order of the classifier. The order is fixed
// so repeated scans of the same page report challenges deterministically.
var AllChallengeTypes = []ChallengeType{
	RecaptchaV2,
	RecaptchaV3,
	HCaptcha,
	FunCaptcha,
	GeeTest,
	Turnstile,
	ImageCaptcha,
	CloudflareBotCheck,
	CloudFrontBotCheck,
	GenericBotDetection,
}

var challengeTypeNames = map[ChallengeType]string{
	RecaptchaV2:         "recaptcha_v2",
	RecaptchaV3:         "recaptcha_v3",
	HCaptcha:            "hcaptcha",
	FunCaptcha:          "funcaptcha",
	GeeTest:             "geetest",
	Turnstile:           "turnstile",
	ImageCaptcha:        "image_captcha",
	CloudflareBotCheck:  "cloudflare_bot_check",
	CloudFrontBotCheck:  "cloudfront_bot_check",
	GenericBotDetection: "generic_bot_detection",
}

func (t ChallengeType) String() string {
	if name, ok := challengeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// DetectedChallenge is a single classifier finding: what kind of challenge,
// where on the page it was seen and the site key when one could be read.
// Findings live only until the next scan of the page.
type DetectedChallenge struct {
	Type       ChallengeType
	Selector   string
	SiteKey    string
	DetectedAt time.Time
}
