package captcha

// Every script below is an arrow function returning a string, so results
// travel uniformly through Page.Eval. Missing values come back as "".

// Runtime probes used by the classifier on pages that load challenge
// frameworks from script, without leaving static markup behind.
const (
	checkRecaptchaV3JS = `() => {
		if (document.querySelector('.g-recaptcha')) return '0';
		let g = window.grecaptcha || null;
		if (g && g.enterprise) g = g.enterprise;
		return g && typeof g.execute === 'function' ? '1' : '0';
	}`

	checkGeeTestJS = `() => typeof window.initGeetest === 'function' ? '1' : '0'`
)

// reCAPTCHA v2 widget scripts.
const (
	readRecaptchaTokenJS = `() => {
		const el = document.querySelector('textarea[name="g-recaptcha-response"], #g-recaptcha-response');
		return el && el.value ? el.value : '';
	}`

	checkRecaptchaImageJS = `() => {
		const f = document.querySelector('iframe[src*="api2/bframe"], iframe[src*="enterprise/bframe"]');
		if (!f) return '0';
		const r = f.getBoundingClientRect();
		return r.width > 60 && r.height > 60 ? '1' : '0';
	}`
)

// reCAPTCHA v3 scripts. Execution is started once and the token is polled
// from a window global, so no promise has to survive an eval round-trip.
const (
	startRecaptchaV3JS = `(key, action) => {
		try {
			window.__captchaToken = '';
			let g = window.grecaptcha;
			if (g && g.enterprise) g = g.enterprise;
			g.execute(key, { action: action || 'submit' }).then((t) => { window.__captchaToken = t; });
			return '1';
		} catch (e) {
			return '0';
		}
	}`

	readHarvestedTokenJS = `() => window.__captchaToken || ''`
)

// Token and answer injection scripts, one per challenge family.
const (
	injectRecaptchaJS = `(token) => {
		document.querySelectorAll('textarea[name="g-recaptcha-response"], #g-recaptcha-response').forEach((el) => {
			el.value = token;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
		});
		const w = document.querySelector('.g-recaptcha[data-callback]');
		if (w) {
			const cb = window[w.getAttribute('data-callback')];
			if (typeof cb === 'function') cb(token);
		}
		return '1';
	}`

	injectHCaptchaJS = `(token) => {
		document.querySelectorAll('textarea[name="h-captcha-response"], textarea[name="g-recaptcha-response"]').forEach((el) => {
			el.value = token;
			el.dispatchEvent(new Event('change', { bubbles: true }));
		});
		const w = document.querySelector('.h-captcha[data-callback]');
		if (w) {
			const cb = window[w.getAttribute('data-callback')];
			if (typeof cb === 'function') cb(token);
		}
		return '1';
	}`

	injectTurnstileJS = `(token) => {
		document.querySelectorAll('input[name="cf-turnstile-response"], input[name="g-recaptcha-response"]').forEach((el) => {
			el.value = token;
		});
		const w = document.querySelector('.cf-turnstile[data-callback]');
		if (w) {
			const cb = window[w.getAttribute('data-callback')];
			if (typeof cb === 'function') cb(token);
		}
		return '1';
	}`

	injectFunCaptchaJS = `(token) => {
		document.querySelectorAll('input[name="fc-token"], #fc-token, input[name="verification-token"]').forEach((el) => {
			el.value = token;
		});
		return '1';
	}`

	injectGeeTestJS = `(challenge, validate, seccode) => {
		const fill = (name, value) => {
			const el = document.querySelector('input[name="' + name + '"]');
			if (el) el.value = value;
		};
		fill('geetest_challenge', challenge);
		fill('geetest_validate', validate);
		fill('geetest_seccode', seccode);
		return '1';
	}`

	injectTextJS = `(sel, text) => {
		const el = document.querySelector(sel);
		if (!el) return '0';
		el.value = text;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return '1';
	}`
)

// readFieldValueJS reads the value of the first element matching a
// selector, used to skip challenges that already carry a response.
const readFieldValueJS = `(sel) => {
	const el = document.querySelector(sel);
	return el && el.value ? el.value : '';
}`

// GeeTest pages usually inline their challenge parameters as globals.
const readGeeTestParamsJS = `() => {
	const gt = typeof window.gt === 'string' ? window.gt : '';
	const challenge = typeof window.challenge === 'string' ? window.challenge : '';
	return gt && challenge ? gt + ':' + challenge : '';
}`

// captureImageJS screenshots a captcha image through a detached canvas and
// returns it base64 encoded. Cross-origin images come back as "".
const captureImageJS = `(sel) => {
	try {
		const img = document.querySelector(sel);
		if (!img || !img.complete || !img.naturalWidth) return '';
		const canvas = document.createElement('canvas');
		canvas.width = img.naturalWidth;
		canvas.height = img.naturalHeight;
		canvas.getContext('2d').drawImage(img, 0, 0);
		const data = canvas.toDataURL('image/png');
		return data.slice(data.indexOf(',') + 1);
	} catch (e) {
		return '';
	}
}`

// injectToken writes a solved token into the response fields of the
// challenge widget and fires its callback when one is declared.
func injectToken(page Page, typ ChallengeType, token string) error {
	var js string
	switch typ {
	case RecaptchaV2, RecaptchaV3:
		js = injectRecaptchaJS
	case HCaptcha:
		js = injectHCaptchaJS
	case Turnstile:
		js = injectTurnstileJS
	case FunCaptcha:
		js = injectFunCaptchaJS
	default:
		return ErrUnsupported
	}
	_, err := page.Eval(js, token)
	return err
}

func applyCookies(page Page, cookies map[string]string) error {
	for name, value := range cookies {
		if err := page.SetCookie(name, value); err != nil {
			return err
		}
	}
	return nil
}
