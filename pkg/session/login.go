package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/outcome"
)

// Environment variables the login flow reads its credentials from.
// They are consumed here and nowhere else, and never logged.
const (
	EnvUsername = "WEBSHOTS_USERNAME"
	EnvPassword = "WEBSHOTS_PASSWORD"
)

// LoginSelectors locates the identity provider's controls. Like the
// step selectors these track one specific frontend and are expected to
// drift.
type LoginSelectors struct {
	Button        string `yaml:"button"`
	ButtonLabel   string `yaml:"button_label"`
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	Authorize     string `yaml:"authorize"`
	LoggedIn      string `yaml:"logged_in"`
	RateLimited   string `yaml:"rate_limited"`
}

// DefaultLoginSelectors matches the current archive frontend and its
// GitHub-backed identity flow.
func DefaultLoginSelectors() LoginSelectors {
	return LoginSelectors{
		Button:        ".v-btn--login",
		ButtonLabel:   "LOGIN",
		UsernameField: "#login_field",
		PasswordField: "#password",
		Authorize:     `button[name="authorize"]`,
		LoggedIn:      ".v-avatar--account",
		RateLimited:   ".flash-error",
	}
}

// CredentialsFromEnv fills missing credentials from the environment.
func (c *Config) CredentialsFromEnv() error {
	if c.Username == "" {
		c.Username = os.Getenv(EnvUsername)
	}
	if c.Password == "" {
		c.Password = os.Getenv(EnvPassword)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("login requires %s and %s", EnvUsername, EnvPassword)
	}
	return nil
}

// authorizeLoops bounds how many times the flow will answer an
// authorization prompt before assuming the login completed.
const authorizeLoops = 2

// login walks the authentication flow against an already-open driver.
// A detected rate-limit page escalates as a Fatality: once the identity
// provider starts throttling, continuing the run would only make it
// worse.
func (s *Session) login(ctx context.Context) error {
	cfg := &s.cfg
	if err := cfg.CredentialsFromEnv(); err != nil {
		return err
	}
	ui := cfg.LoginUI
	t := cfg.Timeouts

	if err := s.drv.Navigate(ctx, cfg.BaseURL); err != nil {
		return fmt.Errorf("login: open landing: %w", err)
	}
	busy := driver.CSS(cfg.Selectors.Busy)
	if err := s.drv.WaitGone(ctx, busy, t.Busy); err != nil {
		return fmt.Errorf("login: landing never settled: %w", err)
	}

	button := driver.CSS(ui.Button)
	label, err := s.drv.Text(ctx, button, t.Ready)
	if err != nil {
		return fmt.Errorf("login: locate login control: %w", err)
	}
	// Fail fast if the target UI changed in a way we do not understand;
	// blindly clicking an unknown control is worse than aborting.
	if !strings.EqualFold(strings.TrimSpace(label), ui.ButtonLabel) {
		return fmt.Errorf("login control reads %q, want %q: target UI changed", label, ui.ButtonLabel)
	}
	if err := s.drv.Click(ctx, button, t.Ready); err != nil {
		return fmt.Errorf("login: click login control: %w", err)
	}

	if err := s.drv.SendKeys(ctx, driver.CSS(ui.UsernameField), cfg.Username, t.Ready); err != nil {
		return fmt.Errorf("login: username field: %w", err)
	}
	if err := s.drv.SendKeys(ctx, driver.CSS(ui.PasswordField), cfg.Password, t.Ready); err != nil {
		return fmt.Errorf("login: password field: %w", err)
	}
	if err := s.drv.Submit(ctx, driver.CSS(ui.PasswordField), t.Ready); err != nil {
		return fmt.Errorf("login: submit credentials: %w", err)
	}

	for i := 0; i < authorizeLoops; i++ {
		found, err := s.waitAny(ctx, t.Ready,
			driver.CSS(ui.RateLimited),
			driver.CSS(ui.LoggedIn),
			driver.CSS(ui.Authorize),
		)
		if err != nil {
			return fmt.Errorf("login: waiting for confirmation: %w", err)
		}
		switch found {
		case 0:
			return outcome.Fatal("identity provider is rate limiting logins")
		case 1:
			s.log.Infof(logging.CategorySession, "login", "authenticated")
			return nil
		case 2:
			if err := s.drv.Click(ctx, driver.CSS(ui.Authorize), t.Action); err != nil {
				return fmt.Errorf("login: authorize: %w", err)
			}
		}
	}
	// Both loops consumed without an explicit marker; the provider
	// redirected straight back, which means the login already held.
	s.log.Infof(logging.CategorySession, "login", "authenticated without confirmation marker")
	return nil
}

// waitAny polls until one of the candidate selectors becomes visible
// and returns its index, or a timeout error when none does in time.
func (s *Session) waitAny(ctx context.Context, timeout time.Duration, candidates ...driver.Selector) (int, error) {
	const slice = 500 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		for i, sel := range candidates {
			err := s.drv.WaitVisible(ctx, sel, slice)
			if err == nil {
				return i, nil
			}
			if !driver.IsTimeout(err) {
				return -1, err
			}
		}
		if time.Now().After(deadline) {
			return -1, fmt.Errorf("none of %d login signals appeared: %w", len(candidates), driver.ErrTimeout)
		}
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
	}
}
