package scraper

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"canvasfetch/pkg/browser"
	"canvasfetch/pkg/config"
	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/storage"
)

// fakeEl is a rendered element in the page-model fixture.
type fakeEl struct {
	text     string
	attrs    map[string]string
	children map[string][]*fakeEl
}

func el(text string) *fakeEl {
	return &fakeEl{text: text, attrs: map[string]string{}, children: map[string][]*fakeEl{}}
}

func (e *fakeEl) attr(name, value string) *fakeEl {
	e.attrs[name] = value
	return e
}

func (e *fakeEl) child(selector string, children ...*fakeEl) *fakeEl {
	e.children[selector] = append(e.children[selector], children...)
	return e
}

func (e *fakeEl) Text() (string, error) { return e.text, nil }

func (e *fakeEl) Attribute(name string) (string, error) {
	return e.attrs[name], nil
}

func (e *fakeEl) Click() error { return nil }

func (e *fakeEl) Elements(selector string) ([]browser.Element, error) {
	return wrapFakes(e.children[selector]), nil
}

func wrapFakes(els []*fakeEl) []browser.Element {
	wrapped := make([]browser.Element, 0, len(els))
	for _, e := range els {
		wrapped = append(wrapped, e)
	}
	return wrapped
}

// fakePage maps selectors to the elements a rendered page would yield.
type fakePage struct {
	elements map[string][]*fakeEl
}

func page() *fakePage {
	return &fakePage{elements: map[string][]*fakeEl{}}
}

func (p *fakePage) with(selector string, els ...*fakeEl) *fakePage {
	p.elements[selector] = append(p.elements[selector], els...)
	return p
}

// fakeDriver serves fixture pages by URL. Unknown URLs render blank pages,
// matching how an error page yields no recognized markers.
type fakeDriver struct {
	pages   map[string]*fakePage
	current string
	navLog  []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{pages: map[string]*fakePage{}}
}

func (d *fakeDriver) addPage(url string, p *fakePage) {
	d.pages[url] = p
}

func (d *fakeDriver) Navigate(url string) error {
	d.current = url
	d.navLog = append(d.navLog, url)
	return nil
}

func (d *fakeDriver) CurrentURL() (string, error) { return d.current, nil }

func (d *fakeDriver) matches(selector string) []*fakeEl {
	p, ok := d.pages[d.current]
	if !ok {
		return nil
	}
	var out []*fakeEl
	for _, part := range strings.Split(selector, ",") {
		out = append(out, p.elements[strings.TrimSpace(part)]...)
	}
	return out
}

func (d *fakeDriver) Element(selector string) (browser.Element, error) {
	els := d.matches(selector)
	if len(els) == 0 {
		return nil, errs.New(errs.ErrorTypeUIAbsence, "no element matches %q", selector)
	}
	return els[0], nil
}

func (d *fakeDriver) Elements(selector string) ([]browser.Element, error) {
	return wrapFakes(d.matches(selector)), nil
}

func (d *fakeDriver) WaitVisible(selector string, _ time.Duration) error {
	if len(d.matches(selector)) == 0 {
		return errs.New(errs.ErrorTypeUIAbsence, "%q not present", selector)
	}
	return nil
}

func (d *fakeDriver) Input(string, string) error { return nil }

func (d *fakeDriver) Cookies() ([]*http.Cookie, error) { return nil, nil }

func (d *fakeDriver) Screenshot(string) error { return nil }

func (d *fakeDriver) Close() error { return nil }

// fakeFetcher serves canned content and counts fetches per URL.
type fakeFetcher struct {
	content map[string]string
	fetches map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{content: map[string]string{}, fetches: map[string]int{}}
}

func (f *fakeFetcher) Fetch(url string) (io.ReadCloser, int64, error) {
	f.fetches[url]++
	body, ok := f.content[url]
	if !ok {
		return nil, 0, errs.NewHTTP(errs.ErrorTypeNotFound, 404, "resource not found")
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func (f *fakeFetcher) totalFetches() int {
	total := 0
	for _, n := range f.fetches {
		total += n
	}
	return total
}

const testBaseURL = "https://portal.example.edu"

func testScraperConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Canvas.BaseURL = testBaseURL
	cfg.Browser.NavDelay = 0
	cfg.Browser.WaitTimeout = 10 * time.Millisecond
	cfg.Browser.ShortWaitTimeout = 10 * time.Millisecond
	cfg.Download.ConcurrentTransfers = 2
	return cfg
}

func newTestScraper(t *testing.T, driver *fakeDriver, fetcher *fakeFetcher) (*Scraper, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := storage.NewManagerWithFs(fs, "mirror", logger.NewNopLogger())
	require.NoError(t, err)
	return New(driver, fetcher, store, nil, testScraperConfig(), logger.NewNopLogger()), fs
}
