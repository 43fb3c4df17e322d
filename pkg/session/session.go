// Package session owns one browser driver end to end: open it,
// optionally authenticate, execute page visits against it, and release
// it on every exit path. A Session lives inside exactly one supervisor
// worker; it is never shared.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/step"
)

// DriverFactory opens the browser instance a session will own.
type DriverFactory func(ctx context.Context) (driver.Driver, error)

// Config carries everything a session needs beyond its driver.
type Config struct {
	// BaseURL is the GUI prefix pages are addressed under, e.g.
	// "https://gui.dandiarchive.org/#/dandiset".
	BaseURL string
	// Login enables the authentication flow on open.
	Login bool

	Timeouts  step.Timeouts
	Selectors step.Selectors
	LoginUI   LoginSelectors

	// Credentials are read from the environment when empty; see
	// CredentialsFromEnv.
	Username string
	Password string
}

// Session drives one open browser through page visits.
type Session struct {
	id    string
	drv   driver.Driver
	cfg   Config
	table map[string]step.Spec
	art   step.Artifacts
	log   *logging.Logger
}

// Open launches a driver via factory and, if configured, logs in. The
// driver is released before Open returns an error: a failed setup never
// leaks a browser.
func Open(ctx context.Context, cfg Config, factory DriverFactory, art step.Artifacts, log *logging.Logger) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("session: base URL required")
	}
	drv, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open driver: %w", err)
	}

	s := &Session{
		id:    uuid.NewString(),
		drv:   drv,
		cfg:   cfg,
		table: step.Table(cfg.Selectors),
		art:   art,
		log:   log,
	}
	if cfg.Login {
		if err := s.login(ctx); err != nil {
			_ = drv.Close()
			return nil, err
		}
	}
	log.Infof(logging.CategorySession, "open", "session %s ready (login=%v)", s.id, cfg.Login)
	return s, nil
}

// ID returns the session's unique identifier, used to correlate log
// events across worker restarts.
func (s *Session) ID() string { return s.id }

// RunStep executes one work item. A nil error with an Outcome means the
// session is still usable regardless of the outcome's kind; a non-nil
// error means the driver has become unusable and the worker should be
// discarded.
func (s *Session) RunStep(ctx context.Context, item step.Item) (outcome.Outcome, error) {
	spec, ok := s.table[item.StepName]
	if !ok {
		return outcome.Errorf("unknown step %q", item.StepName), nil
	}

	out := step.Run(ctx, s.drv, s.art, s.cfg.BaseURL, item, spec, s.cfg.Timeouts)
	s.log.Item(logging.CategoryStep, "outcome", item.CollectionID, item.StepName,
		map[string]any{"result": out.String()})

	if !out.IsSuccess() && !s.drv.Alive(ctx) {
		// The failure was the driver dying, not the page; surface it as
		// a crash so the supervisor restarts the worker.
		return outcome.Outcome{}, fmt.Errorf("step %s/%s: %w",
			item.CollectionID, item.StepName, driver.ErrConnectionLost)
	}
	return out, nil
}

// PID exposes the owned browser's process id for escalated teardown.
func (s *Session) PID() int {
	if s == nil || s.drv == nil {
		return 0
	}
	return s.drv.PID()
}

// Close releases the driver. Safe to call more than once.
func (s *Session) Close() error {
	if s == nil || s.drv == nil {
		return nil
	}
	err := s.drv.Close()
	s.log.Infof(logging.CategorySession, "close", "session %s closed", s.id)
	return err
}
