package browser

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasfetch/pkg/config"
	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
)

// fakeLoginDriver simulates a portal that shows a native login form and
// renders the dashboard once the form is submitted.
type fakeLoginDriver struct {
	currentURL   string
	loggedIn     bool
	preAuthed    bool
	brokenSubmit bool
	inputs       map[string]string
}

func newFakeLoginDriver() *fakeLoginDriver {
	return &fakeLoginDriver{inputs: make(map[string]string)}
}

func (d *fakeLoginDriver) Navigate(url string) error {
	d.currentURL = url
	return nil
}

func (d *fakeLoginDriver) CurrentURL() (string, error) {
	return d.currentURL, nil
}

func (d *fakeLoginDriver) visible(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if d.loggedIn || d.preAuthed {
			if strings.Contains(selDashboardMarker, part) {
				return true
			}
			continue
		}
		switch part {
		case "#pseudonym_session_unique_id", "#pseudonym_session_password", "button[type='submit']":
			return true
		}
	}
	return false
}

func (d *fakeLoginDriver) Element(selector string) (Element, error) {
	if !d.visible(selector) {
		return nil, errs.New(errs.ErrorTypeUIAbsence, "no element matches %q", selector)
	}
	return &fakeLoginElement{driver: d, selector: selector}, nil
}

func (d *fakeLoginDriver) Elements(selector string) ([]Element, error) {
	el, err := d.Element(selector)
	if err != nil {
		return nil, nil
	}
	return []Element{el}, nil
}

func (d *fakeLoginDriver) WaitVisible(selector string, _ time.Duration) error {
	if d.visible(selector) {
		return nil
	}
	return errs.New(errs.ErrorTypeUIAbsence, "%q not present", selector)
}

func (d *fakeLoginDriver) Input(selector, text string) error {
	if !d.visible(selector) {
		return errs.New(errs.ErrorTypeUIAbsence, "input %q not present", selector)
	}
	d.inputs[selector] = text
	return nil
}

func (d *fakeLoginDriver) Cookies() ([]*http.Cookie, error) {
	return []*http.Cookie{{Name: "canvas_session", Value: "fixture"}}, nil
}

func (d *fakeLoginDriver) Screenshot(string) error { return nil }
func (d *fakeLoginDriver) Close() error            { return nil }

type fakeLoginElement struct {
	driver   *fakeLoginDriver
	selector string
}

func (e *fakeLoginElement) Text() (string, error)            { return "", nil }
func (e *fakeLoginElement) Attribute(string) (string, error) { return "", nil }
func (e *fakeLoginElement) Elements(string) ([]Element, error) {
	return nil, nil
}

func (e *fakeLoginElement) Click() error {
	if e.selector == "button[type='submit']" && !e.driver.brokenSubmit {
		e.driver.loggedIn = true
	}
	return nil
}

func loginConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Canvas.BaseURL = "https://canvas.example.edu"
	cfg.Browser.WaitTimeout = 50 * time.Millisecond
	cfg.Browser.ShortWaitTimeout = 10 * time.Millisecond
	cfg.Browser.ScreenshotDir = ""
	return cfg
}

func TestLoginNativeForm(t *testing.T) {
	driver := newFakeLoginDriver()
	flow := NewLoginFlow(driver, loginConfig(), "run-1", logger.NewNopLogger())

	require.NoError(t, flow.Login("student@example.edu", "hunter2"))

	assert.Equal(t, "student@example.edu", driver.inputs["#pseudonym_session_unique_id"])
	assert.Equal(t, "hunter2", driver.inputs["#pseudonym_session_password"])
	assert.True(t, driver.loggedIn)
}

func TestLoginSkipsWhenAlreadyAuthenticated(t *testing.T) {
	driver := newFakeLoginDriver()
	driver.preAuthed = true
	flow := NewLoginFlow(driver, loginConfig(), "run-1", logger.NewNopLogger())

	require.NoError(t, flow.Login("student@example.edu", "hunter2"))
	assert.Empty(t, driver.inputs, "no credentials typed when a session exists")
}

func TestLoginFailsWithoutDashboard(t *testing.T) {
	driver := newFakeLoginDriver()
	driver.brokenSubmit = true
	flow := NewLoginFlow(driver, loginConfig(), "run-1", logger.NewNopLogger())

	err := flow.Login("student@example.edu", "wrong")
	require.Error(t, err)

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeAuth, typed.Type)
}
