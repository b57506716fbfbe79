package undetected

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/x/undetected/captcha"
)

// rodPage adapts a rod page to the surface the captcha package works
// against. Lookups never wait for elements, strategies poll on their own
// schedule.
type rodPage struct {
	page *rod.Page
}

func newRodPage(page *rod.Page) *rodPage {
	return &rodPage{page: page}
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Has(selector string) (bool, error) {
	has, _, err := p.page.Has(selector)
	return has, err
}

func (p *rodPage) Attribute(selector, name string) (string, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return "", err
	}
	if els.Empty() {
		return "", nil
	}
	val, err := els.First().Attribute(name)
	if err != nil || val == nil {
		return "", err
	}
	return *val, nil
}

func (p *rodPage) Eval(js string, args ...any) (string, error) {
	result, err := p.page.Eval(js, args...)
	if err != nil {
		return "", err
	}
	return result.Value.Str(), nil
}

// Click moves the cursor to a point inside the element with a small
// random offset, the way a hand would land on it.
func (p *rodPage) Click(selector string) error {
	els, err := p.page.Elements(selector)
	if err != nil {
		return err
	}
	if els.Empty() {
		return errors.New("nothing to click")
	}
	el := els.First()

	shape, err := el.Shape()
	if err != nil || len(shape.Quads) == 0 {
		return el.Click(proto.InputMouseButtonLeft, 1)
	}
	point := shape.OnePointInside()
	if point == nil {
		return el.Click(proto.InputMouseButtonLeft, 1)
	}

	point.X += float64(rand.Intn(7) - 3)
	point.Y += float64(rand.Intn(7) - 3)
	if err := p.page.Mouse.MoveLinear(*point, 15+rand.Intn(10)); err != nil {
		return err
	}
	return p.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) SetCookie(name, value string) error {
	u, err := url.Parse(p.URL())
	if err != nil || u.Host == "" {
		return errors.New("no page origin for cookie")
	}
	return p.page.SetCookies([]*proto.NetworkCookieParam{{
		Name:  name,
		Value: value,
		URL:   u.Scheme + "://" + u.Host,
	}})
}

func (p *rodPage) Reload() error {
	if err := p.page.Reload(); err != nil {
		return err
	}
	return p.page.WaitLoad()
}

func (p *rodPage) WithTimeout(d time.Duration) captcha.Page {
	return &rodPage{page: p.page.Timeout(d)}
}

func (p *rodPage) WithContext(ctx context.Context) captcha.Page {
	return &rodPage{page: p.page.Context(ctx)}
}
