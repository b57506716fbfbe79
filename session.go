package undetected

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

var (
	matchScheme = regexp.MustCompile(`(?mi)^https?://`)
	matchOrigin = regexp.MustCompile(`(?mi)^https?://[^/]+`)
	matchPath   = regexp.MustCompile(`(?m)/.*`)
)

// Session is one stealth browser with its page, DOM crawler and captcha
// solver. The browser is launched on first use, not at construction.
// A session is driven by a single goroutine, the solver behind it runs
// its own cycles concurrently.
type Session struct {
	// Behaviour switches
	Model *Model

	Browser *rod.Browser
	Page    *rod.Page

	// Current URL
	URL string

	// Current domen
	Domen string

	// Current origin (protocol plus host)
	Origin string

	// Last navigate status
	NavigateStatus int

	log         *zap.Logger
	crawler     *goquery.Document
	lastError   error
	justCreated bool
	prxGetter   ProxyGetter
	cptchSolver CaptchaSolver
}

// SetProxyGetter installs the proxy source used at browser launch.
func (s *Session) SetProxyGetter(getter ProxyGetter) {
	s.prxGetter = getter
}

// GetCrawler returns the DOM tree of the last navigation as a query
// document, an empty document before the first one.
func (s *Session) GetCrawler() *goquery.Document {
	if s.crawler == nil {
		s.initEmptyCrawler()
	}
	return s.crawler
}

func (s *Session) GetNavigateStatus() int {
	return s.NavigateStatus
}

func (s *Session) GetLastError() error {
	return s.lastError
}

// ActualURL returns the address the page currently shows, which can
// differ from the requested one after redirects or challenge reloads.
func (s *Session) ActualURL() string {
	if s.Page == nil {
		return s.URL
	}
	info, err := s.Page.Info()
	if err != nil {
		return s.URL
	}
	return info.URL
}

// Navigate opens the URL, waits for the full load and runs the captcha
// hook. The returned error covers navigation only, solving reports
// through the resolution state.
func (s *Session) Navigate(url string) error {
	if err := s.parseURL(url); err != nil {
		s.lastError = err
		return err
	}

	if err := s.createClientIfNeed(); err != nil {
		s.lastError = err
		return err
	}

	if !s.justCreated && s.Model.DelayBeforeNavigate > 0 {
		time.Sleep(time.Second * time.Duration(s.Model.DelayBeforeNavigate))
	}

	if err := s.waitTotalLoad(func() error { return s.Page.Navigate(s.URL) }); err != nil {
		s.lastError = err
		return err
	}

	if s.justCreated {
		if err := s.executePreScript(); err != nil {
			s.lastError = err
			return err
		}
	}

	if s.Model.DelayBeforeRead > 0 {
		time.Sleep(time.Second * time.Duration(s.Model.DelayBeforeRead))
	}

	s.lastError = nil
	s.afterNavigation()
	return nil
}

// Refresh reloads the current page with the same load discipline as
// Navigate, captcha hook included.
func (s *Session) Refresh() error {
	if s.Page == nil {
		return ErrNoPageHTML
	}

	if err := s.waitTotalLoad(func() error { return s.Page.Reload() }); err != nil {
		s.lastError = err
		return err
	}

	s.lastError = nil
	s.afterNavigation()
	return nil
}

// Evaluate runs a script on the current page and returns its string
// result.
func (s *Session) Evaluate(script string, args ...any) (string, error) {
	if err := s.createClientIfNeed(); err != nil {
		return "", err
	}
	result, err := s.Page.Eval(script, args...)
	if err != nil {
		return "", err
	}
	return result.Value.Str(), nil
}

// FormatUrl resolves a link relative to the current origin.
func (s *Session) FormatUrl(href string) string {
	if matchScheme.MatchString(href) {
		return href
	}
	if strings.HasPrefix(href, "?") {
		return regexp.MustCompile(`(?m)\?.*`).ReplaceAllString(s.URL, "") + href
	}
	if strings.HasPrefix(href, "/") {
		return s.Origin + href
	}
	return s.Origin + "/" + href
}

// Close shuts the page and the browser down. A system Chrome the session
// only attached to stays alive.
func (s *Session) Close() error {
	var errPage, errBrowser error
	if s.Page != nil {
		errPage = s.Page.Close()
		s.Page = nil
	}
	if s.Browser != nil && !s.Model.UseSystemChrome {
		errBrowser = s.Browser.Close()
		s.Browser = nil
	}
	if errPage != nil {
		return errPage
	}
	return errBrowser
}

// parseURL stores the target and derives domen and origin from it.
func (s *Session) parseURL(url string) error {
	if !matchScheme.MatchString(url) {
		return ErrInvalidURL
	}
	domen := matchScheme.ReplaceAllString(url, "")
	domen = matchPath.ReplaceAllString(domen, "")
	if domen == "" {
		return ErrInvalidURL
	}
	s.URL = url
	s.Domen = domen
	s.Origin = matchOrigin.FindString(url)
	return nil
}

// createClientIfNeed lazily launches the browser and opens a stealth
// page. An existing page is reused.
func (s *Session) createClientIfNeed() error {
	if s.Page != nil {
		s.justCreated = false
		return nil
	}

	if s.Browser == nil {
		browser, err := s.createBrowser()
		if err != nil {
			return err
		}
		s.Browser = browser
	}

	page, err := stealth.Page(s.Browser)
	if err != nil {
		return err
	}
	if s.Model.Mobile {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             400,
			Height:            800,
			DeviceScaleFactor: 1,
			Mobile:            true,
		}); err != nil {
			return err
		}
	}

	s.Page = page
	s.justCreated = true
	s.log.Debug("stealth page created")
	return nil
}

func (s *Session) createBrowser() (*rod.Browser, error) {
	var u string
	var err error

	useSystemChrome := s.Model.UseSystemChrome

	// Try the system Chrome when asked for, fall back to a bundled
	// launch when it refuses.
	if useSystemChrome {
		u, err = launcher.NewUserMode().Launch()
		if err != nil {
			useSystemChrome = false
		}
	}

	if !useSystemChrome {
		l := launcher.New().
			Headless(!s.Model.Visible && !s.Model.UseSystemChrome).
			Set("blink-settings", fmt.Sprintf("imagesEnabled=%t", s.Model.ShowImages))

		if s.prxGetter != nil {
			if proxy, err := s.prxGetter.GetProxy(); err == nil && proxy != "" {
				l.Proxy(proxy)
			}
		}

		u, err = l.Launch()
	}

	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	s.log.Debug("browser started", zap.Bool("system_chrome", useSystemChrome))
	return browser.NoDefaultDevice(), nil
}

// waitTotalLoad runs the trigger and waits until the server answered and
// the page finished loading. The load timeout only starts counting after
// the response arrived, slow servers do not eat the render budget.
func (s *Session) waitTotalLoad(trigger func() error) error {
	response := proto.NetworkResponseReceived{}
	waitResponse := s.Page.WaitEvent(&response)

	timeout := s.Model.navigationTimeout()
	timeoutResponse := time.NewTimer(timeout)
	defer timeoutResponse.Stop()

	timeoutLoad := time.NewTimer(timeout)
	timeoutLoad.Stop()
	defer timeoutLoad.Stop()

	responseReceived := make(chan any, 1)
	waitLoad := make(chan error, 1)

	go func() {
		waitResponse()
		responseReceived <- nil
		timeoutLoad.Reset(timeout)
	}()

	if s.Model.NavigationSelector == "" {
		waitEventLoad := s.Page.WaitNavigation(s.Model.pageLoadEvent())
		go func() {
			waitEventLoad()

			// The load event can fire before the response handler ran,
			// wait the status out.
			<-responseReceived
			waitLoad <- nil
		}()
	} else {
		go func() {
			waitLoad <- s.Page.WaitElementsMoreThan(s.Model.NavigationSelector, 1)
		}()
	}

	if trigger != nil {
		time.Sleep(time.Millisecond * 10)
		if err := trigger(); err != nil {
			return err
		}
	}

	select {
	case err := <-waitLoad:
		if err != nil {
			return err
		}
		s.NavigateStatus = response.Response.Status
		return nil
	case <-timeoutResponse.C:
		s.log.Warn("navigation response timed out", zap.String("url", s.URL))
		return ErrTimeoutResponse
	case <-timeoutLoad.C:
		s.log.Warn("page load timed out", zap.String("url", s.URL))
		return ErrTimeoutNavigation
	}
}

func (s *Session) executePreScript() error {
	if s.Model.PreScript == "" {
		return nil
	}
	_, err := s.Evaluate(s.Model.PreScript)
	return err
}

// afterNavigation rebuilds the crawler and hands the page to the captcha
// hook. Crawler trouble never fails the navigation that produced it.
func (s *Session) afterNavigation() {
	html, err := s.Page.HTML()
	if err != nil {
		s.lastError = ErrNoPageHTML
		s.initEmptyCrawler()
	} else if err := s.createCrawler(html); err != nil {
		s.log.Warn("crawler build failed", zap.Error(err))
		s.initEmptyCrawler()
	}

	s.hookPostNavigation()
}

func (s *Session) initEmptyCrawler() {
	s.crawler, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
}

// createCrawler composes the DOM tree into a query document.
func (s *Session) createCrawler(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	s.crawler = doc
	return nil
}
