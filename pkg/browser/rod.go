package browser

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"canvasfetch/pkg/config"
	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
)

// RodDriver is the production Driver over a Chromium instance controlled
// through go-rod.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	navDelay time.Duration
	logger   logger.Logger
}

// NewRodDriver launches a browser and opens the single page the scraper
// will drive for the whole run.
func NewRodDriver(cfg *config.BrowserConfig, log logger.Logger) (*RodDriver, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Leakless(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNavigation, "failed to launch browser: %v", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, errs.New(errs.ErrorTypeNavigation, "failed to connect to browser: %v", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, errs.New(errs.ErrorTypeNavigation, "failed to open page: %v", err)
	}

	log.DebugWithFields("browser launched", map[string]interface{}{
		"headless": cfg.Headless,
	})

	return &RodDriver{
		launcher: l,
		browser:  b,
		page:     page,
		navDelay: cfg.NavDelay,
		logger:   log,
	}, nil
}

// Navigate loads the URL and waits out the settle delay. The portal renders
// most listings client-side, so the fixed delay after the load event gives
// scripts time to populate the DOM before callers start querying it.
func (d *RodDriver) Navigate(url string) error {
	if err := d.page.Navigate(url); err != nil {
		return errs.New(errs.ErrorTypeNavigation, "failed to navigate to %s: %v", url, err)
	}
	if err := d.page.WaitLoad(); err != nil {
		return errs.New(errs.ErrorTypeNavigation, "page load failed for %s: %v", url, err)
	}
	time.Sleep(d.navDelay)
	return nil
}

func (d *RodDriver) CurrentURL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", errs.New(errs.ErrorTypeNavigation, "failed to read page info: %v", err)
	}
	return info.URL, nil
}

func (d *RodDriver) Element(selector string) (Element, error) {
	has, el, err := d.page.Has(selector)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNavigation, "element query failed for %q: %v", selector, err)
	}
	if !has {
		return nil, errs.New(errs.ErrorTypeUIAbsence, "no element matches %q", selector)
	}
	return &rodElement{el: el}, nil
}

func (d *RodDriver) Elements(selector string) ([]Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNavigation, "element query failed for %q: %v", selector, err)
	}
	return wrapElements(els), nil
}

func (d *RodDriver) WaitVisible(selector string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		return errs.New(errs.ErrorTypeUIAbsence, "%q not present within %s", selector, timeout)
	}
	if err := el.WaitVisible(); err != nil {
		return errs.New(errs.ErrorTypeUIAbsence, "%q not visible within %s", selector, timeout)
	}
	return nil
}

func (d *RodDriver) Input(selector, text string) error {
	el, err := d.page.Timeout(10 * time.Second).Element(selector)
	if err != nil {
		return errs.New(errs.ErrorTypeUIAbsence, "input %q not present", selector)
	}
	if err := el.SelectAllText(); err == nil {
		el.Input("")
	}
	if err := el.Input(text); err != nil {
		return errs.New(errs.ErrorTypeNavigation, "failed to type into %q: %v", selector, err)
	}
	return nil
}

// Cookies exports the session cookies in net/http form for the transfer
// client's jar.
func (d *RodDriver) Cookies() ([]*http.Cookie, error) {
	rodCookies, err := d.page.Cookies(nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeAuth, "failed to read cookies: %v", err)
	}

	cookies := make([]*http.Cookie, 0, len(rodCookies))
	for _, c := range rodCookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

func (d *RodDriver) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := d.page.Screenshot(true, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeNavigation, "screenshot failed: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (d *RodDriver) Close() error {
	var firstErr error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			firstErr = err
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	return firstErr
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	value, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Elements(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func wrapElements(els rod.Elements) []Element {
	wrapped := make([]Element, 0, len(els))
	for _, el := range els {
		wrapped = append(wrapped, &rodElement{el: el})
	}
	return wrapped
}
