package auth

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// elementTimeout bounds individual element lookups so a missing selector is
// reported quickly instead of hanging until the navigation deadline.
const elementTimeout = 5 * time.Second

// rodSurface implements Surface on top of a rod page.
type rodSurface struct {
	page       *rod.Page
	navTimeout time.Duration
}

// newRodSurface creates a page on the given browser with stealth JS installed
// and a plausible Referer header, then wraps it as a Surface.
//
// Stealth must be injected before the first navigation: the JS only takes
// effect for documents created after it is installed.
func newRodSurface(ctx context.Context, browser *rod.Browser, baseURL string, navTimeout time.Duration) (*rodSurface, *rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, nil, err
	}
	p := page.Context(ctx)

	if u, parseErr := url.Parse(baseURL); parseErr == nil {
		headers := proto.NetworkHeaders{
			"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
		}
		if hdrErr := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(p)); hdrErr != nil {
			slog.Debug("auth: set extra headers", "error", hdrErr)
		}
	}

	return &rodSurface{page: p, navTimeout: navTimeout}, p, nil
}

func (s *rodSurface) Navigate(u string) error {
	p := s.page.Timeout(s.navTimeout)
	if err := p.Navigate(u); err != nil {
		return err
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("auth: WaitDOMStable did not converge", "url", u, "error", err)
	}
	return nil
}

func (s *rodSurface) Location() string {
	res, err := s.page.Eval(`() => window.location.href`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (s *rodSurface) Title() string {
	res, err := s.page.Eval(`() => document.title`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (s *rodSurface) HTML() (string, error) {
	return s.page.HTML()
}

func (s *rodSurface) SetCookie(name, value, domain string) error {
	_, err := proto.NetworkSetCookie{
		Name:   name,
		Value:  value,
		Domain: domain,
		Path:   "/",
	}.Call(s.page)
	return err
}

func (s *rodSurface) Has(selector string) (bool, error) {
	has, _, err := s.page.Timeout(elementTimeout).Has(selector)
	return has, err
}

func (s *rodSurface) Fill(selector, value string) error {
	el, err := s.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return err
	}
	// Select any prefilled text so Input replaces instead of appends.
	if err := el.SelectAllText(); err != nil {
		slog.Debug("auth: select text", "selector", selector, "error", err)
	}
	return el.Input(value)
}

func (s *rodSurface) Click(selector string) error {
	el, err := s.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSurface) PressEnter(selector string) error {
	el, err := s.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return err
	}
	return el.Type(input.Enter)
}
