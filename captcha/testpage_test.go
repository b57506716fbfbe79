package captcha

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// fakePage is an in-memory Page. Selector lookups run against the html
// snapshot through goquery, scripts are answered by evalFn, every
// mutation is recorded.
type fakePage struct {
	mu      sync.Mutex
	url     string
	html    string
	evalFn  func(js string, args ...any) (string, error)
	evals   []string
	clicks  []string
	cookies map[string]string
	reloads int
}

func newFakePage(url, html string) *fakePage {
	return &fakePage{url: url, html: html, cookies: map[string]string{}}
}

func (p *fakePage) setHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *fakePage) doc() *goquery.Document {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	return doc
}

// writeCount is how many times the page was mutated in any way.
func (p *fakePage) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clicks) + len(p.cookies) + p.reloads
}

func (p *fakePage) evaluated(js string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.evals {
		if e == js {
			return true
		}
	}
	return false
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *fakePage) Has(selector string) (bool, error) {
	return p.doc().Find(selector).Length() > 0, nil
}

func (p *fakePage) Attribute(selector, name string) (string, error) {
	v, _ := p.doc().Find(selector).Attr(name)
	return v, nil
}

func (p *fakePage) Eval(js string, args ...any) (string, error) {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	fn := p.evalFn
	p.mu.Unlock()
	if fn != nil {
		return fn(js, args...)
	}
	return "", nil
}

func (p *fakePage) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) SetCookie(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies[name] = value
	return nil
}

func (p *fakePage) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

func (p *fakePage) WithTimeout(time.Duration) Page   { return p }
func (p *fakePage) WithContext(context.Context) Page { return p }

// fakeStrategy counts attempts and answers through fn, Solved when no fn
// is set.
type fakeStrategy struct {
	name  string
	fn    func(ctx context.Context, page Page, ch DetectedChallenge) Outcome
	calls atomic.Int32
}

func (s *fakeStrategy) Name() string {
	if s.name == "" {
		return "fake"
	}
	return s.name
}

func (s *fakeStrategy) Attempt(ctx context.Context, page Page, ch DetectedChallenge) Outcome {
	s.calls.Add(1)
	if s.fn == nil {
		return Solved()
	}
	return s.fn(ctx, page, ch)
}

// fakeScanner answers per call number and can be held open through block
// to keep a cycle in its scanning phase.
type fakeScanner struct {
	calls atomic.Int32
	fn    func(call int) []DetectedChallenge
	err   error
	block chan struct{}
}

func (f *fakeScanner) Classify(ctx context.Context, page Page) ([]DetectedChallenge, error) {
	call := int(f.calls.Add(1))
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(call), nil
}

// fakeTable is a hand-built strategy table.
type fakeTable map[ChallengeType][]Strategy

func (t fakeTable) StrategiesFor(typ ChallengeType) []Strategy { return t[typ] }

func detected(typ ChallengeType) DetectedChallenge {
	return DetectedChallenge{Type: typ, SiteKey: "test-sitekey", DetectedAt: time.Now()}
}

func scanOf(types ...ChallengeType) *fakeScanner {
	challenges := make([]DetectedChallenge, len(types))
	for i, typ := range types {
		challenges[i] = detected(typ)
	}
	return &fakeScanner{fn: func(int) []DetectedChallenge { return challenges }}
}

func testConfig() Config {
	return Config{
		PerAttemptTimeout: 200 * time.Millisecond,
		MaxRetries:        2,
		SettleTimeout:     10 * time.Millisecond,
	}
}

func newTestOrchestrator(cfg Config, scan scanner, table strategySource) *Orchestrator {
	o := NewOrchestrator(cfg, NewResolutionState(), nil)
	o.scan = scan
	o.registry = table
	return o
}
