// Package browser is the automation boundary between the scraper and the
// rendered portal. The scraper core talks to the Driver and Element
// interfaces only; the go-rod implementation lives behind them so traversal
// and discovery logic is testable with hand-rolled fakes.
package browser

import (
	"net/http"
	"time"
)

// Element is a handle on a rendered page element. Handles are only valid
// until the next navigation; callers must re-query after navigating.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)
	// Attribute returns the named attribute's value, or "" when the
	// attribute is absent.
	Attribute(name string) (string, error)
	// Click clicks the element.
	Click() error
	// Elements returns matching descendants.
	Elements(selector string) ([]Element, error)
}

// Driver drives a single browser page. All navigation in the scraper flows
// through one Driver; there is exactly one current URL at any time.
type Driver interface {
	// Navigate loads the URL, waits for the load event and applies the
	// configured settle delay.
	Navigate(url string) error
	// CurrentURL returns the page's current URL.
	CurrentURL() (string, error)
	// Element returns the first match without waiting. Absence is a typed
	// ui_absence error.
	Element(selector string) (Element, error)
	// Elements returns all current matches without waiting. No match is an
	// empty slice, not an error.
	Elements(selector string) ([]Element, error)
	// WaitVisible waits up to timeout for the selector to be visible.
	// Expiry is a typed ui_absence error; callers treat it as "section
	// absent" and fall back, never as fatal.
	WaitVisible(selector string, timeout time.Duration) error
	// Input types text into the element matching the selector.
	Input(selector, text string) error
	// Cookies exports the session cookies for seeding the transfer client.
	Cookies() ([]*http.Cookie, error)
	// Screenshot captures the full page into the given file.
	Screenshot(path string) error
	// Close shuts the page and browser down.
	Close() error
}
