package browser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"canvasfetch/pkg/config"
	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
)

// Provider identifies the identity provider serving the portal's login page.
type Provider string

const (
	ProviderMicrosoft Provider = "microsoft"
	ProviderGoogle    Provider = "google"
	ProviderCanvas    Provider = "canvas"
	ProviderGeneric   Provider = "generic"
)

// Markers confirming an authenticated dashboard is on screen.
const selDashboardMarker = "#dashboard, #DashboardCard_Container, .ic-DashboardCard, #dashboard_header_container"

// LoginFlow walks the portal's sign-in sequence against whichever identity
// provider the portal redirects to, then confirms the dashboard rendered.
type LoginFlow struct {
	driver        Driver
	baseURL       string
	forced        Provider
	waitTimeout   time.Duration
	shortTimeout  time.Duration
	screenshotDir string
	runID         string
	logger        logger.Logger
}

// NewLoginFlow builds a login flow. runID tags step screenshots so runs do
// not clobber each other's diagnostics. cfg.Canvas.AuthProvider, when set,
// skips provider detection.
func NewLoginFlow(d Driver, cfg *config.Config, runID string, log logger.Logger) *LoginFlow {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LoginFlow{
		driver:        d,
		baseURL:       cfg.Canvas.BaseURL,
		forced:        Provider(cfg.Canvas.AuthProvider),
		waitTimeout:   cfg.Browser.WaitTimeout,
		shortTimeout:  cfg.Browser.ShortWaitTimeout,
		screenshotDir: cfg.Browser.ScreenshotDir,
		runID:         runID,
		logger:        log,
	}
}

// Login authenticates the browser session. It is the only place credentials
// touch the page; afterwards the session lives in cookies.
func (f *LoginFlow) Login(username, password string) error {
	if err := f.driver.Navigate(f.baseURL); err != nil {
		return err
	}
	f.snap("01-landing")

	// An existing browser profile may already hold a session.
	if f.dashboardVisible(f.shortTimeout) {
		f.logger.Info("already authenticated, skipping login")
		return nil
	}

	provider := f.detectProvider()
	f.logger.InfoWithFields("signing in", map[string]interface{}{
		"provider": string(provider),
	})

	var err error
	switch provider {
	case ProviderMicrosoft:
		err = f.loginMicrosoft(username, password)
	case ProviderGoogle:
		err = f.loginGoogle(username, password)
	case ProviderCanvas:
		err = f.loginCanvas(username, password)
	default:
		err = f.loginGeneric(username, password)
	}
	if err != nil {
		f.snap("99-login-failed")
		return err
	}

	if !f.dashboardVisible(f.waitTimeout) {
		f.snap("99-no-dashboard")
		return errs.New(errs.ErrorTypeAuth, "dashboard did not render after sign-in")
	}

	f.snap("02-dashboard")
	f.logger.Info("login confirmed")
	return nil
}

// detectProvider inspects the post-redirect URL first and falls back to
// login-page markers.
func (f *LoginFlow) detectProvider() Provider {
	if f.forced != "" {
		return f.forced
	}

	current, err := f.driver.CurrentURL()
	if err == nil {
		switch {
		case strings.Contains(current, "login.microsoftonline.com"),
			strings.Contains(current, "login.live.com"):
			return ProviderMicrosoft
		case strings.Contains(current, "accounts.google.com"):
			return ProviderGoogle
		}
	}

	if _, err := f.driver.Element("#pseudonym_session_unique_id"); err == nil {
		return ProviderCanvas
	}
	if _, err := f.driver.Element("input[name='loginfmt']"); err == nil {
		return ProviderMicrosoft
	}
	if _, err := f.driver.Element("#identifierId"); err == nil {
		return ProviderGoogle
	}

	return ProviderGeneric
}

func (f *LoginFlow) loginMicrosoft(username, password string) error {
	if err := f.typeAndAdvance("input[type='email']", username, "#idSIButton9"); err != nil {
		return errs.New(errs.ErrorTypeAuth, "microsoft username step failed: %v", err)
	}
	if err := f.driver.WaitVisible("input[type='password']", f.waitTimeout); err != nil {
		return errs.New(errs.ErrorTypeAuth, "microsoft password field did not appear")
	}
	if err := f.typeAndAdvance("input[type='password']", password, "#idSIButton9"); err != nil {
		return errs.New(errs.ErrorTypeAuth, "microsoft password step failed: %v", err)
	}

	// "Stay signed in?" interstitial; either answer works for the session.
	if err := f.driver.WaitVisible("#idSIButton9", f.shortTimeout); err == nil {
		if el, err := f.driver.Element("#idSIButton9"); err == nil {
			el.Click()
		}
	}
	return nil
}

func (f *LoginFlow) loginGoogle(username, password string) error {
	if err := f.typeAndAdvance("#identifierId", username, "#identifierNext"); err != nil {
		return errs.New(errs.ErrorTypeAuth, "google username step failed: %v", err)
	}
	if err := f.driver.WaitVisible("input[type='password']", f.waitTimeout); err != nil {
		return errs.New(errs.ErrorTypeAuth, "google password field did not appear")
	}
	if err := f.typeAndAdvance("input[type='password']", password, "#passwordNext"); err != nil {
		return errs.New(errs.ErrorTypeAuth, "google password step failed: %v", err)
	}
	return nil
}

func (f *LoginFlow) loginCanvas(username, password string) error {
	if err := f.driver.Input("#pseudonym_session_unique_id", username); err != nil {
		return errs.New(errs.ErrorTypeAuth, "username field unavailable: %v", err)
	}
	if err := f.driver.Input("#pseudonym_session_password", password); err != nil {
		return errs.New(errs.ErrorTypeAuth, "password field unavailable: %v", err)
	}
	return f.submit("button[type='submit']")
}

func (f *LoginFlow) loginGeneric(username, password string) error {
	userSel := "input[type='email'], input[type='text'][name*='user'], input[name='username']"
	if err := f.driver.Input(userSel, username); err != nil {
		return errs.New(errs.ErrorTypeAuth, "username field unavailable: %v", err)
	}
	if err := f.driver.Input("input[type='password']", password); err != nil {
		return errs.New(errs.ErrorTypeAuth, "password field unavailable: %v", err)
	}
	return f.submit("button[type='submit'], input[type='submit']")
}

func (f *LoginFlow) typeAndAdvance(fieldSel, value, buttonSel string) error {
	if err := f.driver.Input(fieldSel, value); err != nil {
		return err
	}
	return f.submit(buttonSel)
}

func (f *LoginFlow) submit(buttonSel string) error {
	el, err := f.driver.Element(buttonSel)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return errs.New(errs.ErrorTypeAuth, "submit click failed: %v", err)
	}
	time.Sleep(time.Second)
	return nil
}

func (f *LoginFlow) dashboardVisible(timeout time.Duration) bool {
	return f.driver.WaitVisible(selDashboardMarker, timeout) == nil
}

// snap records a step screenshot. Failures are logged and ignored; the
// screenshots are diagnostics, never control flow.
func (f *LoginFlow) snap(step string) {
	if f.screenshotDir == "" {
		return
	}
	path := filepath.Join(f.screenshotDir, fmt.Sprintf("%s-%s.png", f.runID, step))
	if err := f.driver.Screenshot(path); err != nil {
		f.logger.DebugWithFields("screenshot failed", map[string]interface{}{
			"step":  step,
			"error": err.Error(),
		})
	}
}
