package forum

import (
	"context"
	"errors"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"
)

const (
	sessionCheckTimeout = 3 * time.Second
	loginFormTimeout    = 3 * time.Second
	loginVerifyTimeout  = 5 * time.Second
	fieldTimeout        = 10 * time.Second
)

// Authenticator establishes a logged-in session on a page
type Authenticator struct {
	site  Site
	creds Credentials

	// Policy retries a whole login attempt on transient failures
	Policy helpers.RetryPolicy
	// Pause is the wait between typing into form fields
	Pause time.Duration
	Sleep Sleeper

	log *logger.Logger
}

// NewAuthenticator returns an Authenticator with two attempts three seconds apart
func NewAuthenticator(site Site, creds Credentials) *Authenticator {
	return &Authenticator{
		site:  site,
		creds: creds,
		Policy: helpers.RetryPolicy{
			Name:        "login",
			MaxAttempts: 2,
			Delay:       3 * time.Second,
			Retryable:   taskerrors.IsRetryable,
		},
		Pause: time.Second,
		Sleep: defaultSleeper,
		log:   logger.For("auth"),
	}
}

// CheckSession opens the home page and reports whether a user is logged in.
// It has no side effects beyond navigation, so calling it twice gives the
// same answer.
func (a *Authenticator) CheckSession(ctx context.Context, page browser.Page) (bool, error) {
	if err := page.Navigate(ctx, a.site.HomeURL, PageLoadTimeout); err != nil {
		return false, taskerrors.NewTransient("auth", "open home page", err)
	}

	_, err := page.FindElement(ctx, SelectorCurrentUser, sessionCheckTimeout)
	switch {
	case err == nil:
		a.log.Info().Msg("Already logged in")
		return true, nil
	case errors.Is(err, browser.ErrNotFound):
		a.log.Info().Msg("Not logged in")
		return false, nil
	default:
		return false, taskerrors.NewTransient("auth", "check session", err)
	}
}

// EnsureSession logs in unless the session is already valid. It reports
// whether a login was performed.
func (a *Authenticator) EnsureSession(ctx context.Context, page browser.Page) (bool, error) {
	loggedIn, err := a.CheckSession(ctx, page)
	if err != nil {
		a.log.Warn().Err(err).Msg("Session check failed, trying to log in")
	}
	if loggedIn {
		return false, nil
	}
	if err := a.Login(ctx, page); err != nil {
		return false, err
	}
	return true, nil
}

// Login fills and submits the login form then waits for the user menu
func (a *Authenticator) Login(ctx context.Context, page browser.Page) error {
	if a.creds.Username == "" || a.creds.Password == "" {
		return taskerrors.NewAuthentication("username or password missing", nil)
	}
	err := helpers.Do(ctx, a.Policy, func(ctx context.Context) error {
		return a.loginOnce(ctx, page)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !taskerrors.Is(err, taskerrors.ErrorTypeAuthentication) {
			err = taskerrors.NewAuthentication("login failed", err)
		}
		return err
	}
	a.log.Info().Str("user", a.creds.Username).Msg("Login succeeded")
	return nil
}

func (a *Authenticator) loginOnce(ctx context.Context, page browser.Page) error {
	a.log.Info().Msg("Opening login page")
	if err := page.Navigate(ctx, a.site.LoginURL, PageLoadTimeout); err != nil {
		return taskerrors.NewTransient("auth", "open login page", err)
	}
	if _, err := page.FindElement(ctx, SelectorLoginForm, loginFormTimeout); err != nil {
		return taskerrors.NewTransient("auth", "login form not found", err)
	}

	if err := a.fill(ctx, page, SelectorLoginUsername, a.creds.Username); err != nil {
		return err
	}
	if err := a.fill(ctx, page, SelectorLoginPassword, a.creds.Password); err != nil {
		return err
	}

	button, err := page.FindElement(ctx, SelectorLoginButton, fieldTimeout)
	if err != nil {
		return taskerrors.NewTransient("auth", "login button not found", err)
	}
	if err := button.Click(ctx); err != nil {
		return taskerrors.NewTransient("auth", "submit login form", err)
	}

	if _, err := page.FindElement(ctx, SelectorCurrentUser, loginVerifyTimeout); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return taskerrors.NewAuthentication("user menu missing after submit", err)
		}
		return taskerrors.NewTransient("auth", "verify login", err)
	}
	return nil
}

func (a *Authenticator) fill(ctx context.Context, page browser.Page, selector, value string) error {
	field, err := page.FindElement(ctx, selector, fieldTimeout)
	if err != nil {
		return taskerrors.NewTransient("auth", "field "+selector+" not found", err)
	}
	if err := field.Input(ctx, value); err != nil {
		return taskerrors.NewTransient("auth", "type into "+selector, err)
	}
	return a.Sleep(ctx, a.Pause)
}
