// Package supervisor makes a crash-prone browser session usable as a
// reliable execute-one-item function. The session runs inside an
// isolated worker; the supervisor exchanges (request, response) pairs
// with it over a duplex channel, restarts it transparently on crash,
// enforces a bounded retry budget, and escalates fatal conditions and
// interrupts instead of retrying them. The worker's browser process
// tree is reaped on every teardown path.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/metrics"
	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/reaper"
	"github.com/odvcencio/webshots/pkg/step"
)

// DefaultMaxAttempts bounds retries per item. Transient browser crashes
// are common enough that retrying is worth it; retrying forever would
// mask systemic failures like the target site being down.
const DefaultMaxAttempts = 5

var (
	// ErrInterrupted marks an external cancellation observed on the
	// worker; the run must stop, not restart.
	ErrInterrupted = errors.New("run interrupted")
	// ErrRetriesExhausted marks an item that crashed the worker on
	// every allowed attempt.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
	// ErrClosed is returned by Execute after Close.
	ErrClosed = errors.New("supervisor closed")
)

// Config tunes the supervisor's recovery behavior.
type Config struct {
	MaxAttempts int `yaml:"max_attempts"`
	// ResponseTimeout caps any single wait on the worker; a worker that
	// exceeds it is killed and the attempt counts as a crash.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	// ClosePause is the brief gap between closing the channel and
	// terminating, letting the browser release its own resources.
	ClosePause time.Duration `yaml:"close_pause"`
	// CloseGrace bounds the polite-shutdown wait before escalation.
	CloseGrace time.Duration `yaml:"close_grace"`
	// ReapGrace is passed to the process reaper.
	ReapGrace time.Duration `yaml:"reap_grace"`
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 5 * time.Minute
	}
	if c.ClosePause <= 0 {
		c.ClosePause = 500 * time.Millisecond
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = 10 * time.Second
	}
	if c.ReapGrace <= 0 {
		c.ReapGrace = reaper.DefaultGrace
	}
	return c
}

// Supervisor owns at most one worker at a time. Work items are
// processed strictly sequentially; the caller never touches the worker
// or its browser directly.
type Supervisor struct {
	cfg     Config
	factory Factory
	log     *logging.Logger
	met     *metrics.Set

	// Single-threaded caller per the scheduling model; no lock needed
	// around w beyond that contract.
	w      *worker
	closed bool
}

// New creates a supervisor; met may be nil.
func New(factory Factory, cfg Config, log *logging.Logger, met *metrics.Set) *Supervisor {
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		factory: factory,
		log:     log,
		met:     met,
	}
}

// Execute runs one work item through the supervised session and returns
// exactly one Outcome. Worker crashes are retried with a fresh worker
// up to the budget; fatal conditions and interrupts escalate
// immediately. A retried item is indistinguishable from a first attempt
// apart from latency.
func (s *Supervisor) Execute(ctx context.Context, item step.Item) (outcome.Outcome, error) {
	if s.closed {
		return outcome.Outcome{}, ErrClosed
	}
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.met.RecordRetry()
		}
		w, err := s.ensureWorker(ctx)
		if err != nil {
			return outcome.Outcome{}, err
		}

		select {
		case w.requests <- item:
		case <-w.done:
			if err := s.afterExit(w, item, attempt); err != nil {
				return outcome.Outcome{}, err
			}
			continue
		case <-ctx.Done():
			return outcome.Outcome{}, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
		}

		timer := time.NewTimer(s.cfg.ResponseTimeout)
		select {
		case env := <-w.replies:
			timer.Stop()
			if env.fatal != nil {
				s.met.RecordFatality()
				s.discard(w)
				return outcome.Outcome{}, env.fatal
			}
			return env.out, nil
		case <-w.done:
			timer.Stop()
			if err := s.afterExit(w, item, attempt); err != nil {
				return outcome.Outcome{}, err
			}
			continue
		case <-timer.C:
			// Completely unresponsive worker; a hung browser would
			// otherwise stall the run forever.
			s.log.Errorf(logging.CategorySupervisor, "worker_unresponsive",
				"no response within %s for %s/%s, killing worker",
				s.cfg.ResponseTimeout, item.CollectionID, item.StepName)
			s.terminate(w)
			s.met.RecordRestart()
			continue
		case <-ctx.Done():
			timer.Stop()
			s.terminate(w)
			return outcome.Outcome{}, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
		}
	}
	return outcome.Outcome{}, fmt.Errorf("%w: %d attempts for %s/%s",
		ErrRetriesExhausted, s.cfg.MaxAttempts, item.CollectionID, item.StepName)
}

// ensureWorker returns a live worker, starting a replacement when the
// previous one crashed. An interrupted or fatally-exited worker
// escalates instead of being replaced.
func (s *Supervisor) ensureWorker(ctx context.Context) (*worker, error) {
	if s.w != nil {
		if s.w.alive() {
			return s.w, nil
		}
		w := s.w
		reason, err := w.exitState()
		switch reason {
		case exitInterrupted:
			s.discard(w)
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
		case exitFatal:
			s.discard(w)
			return nil, err
		default:
			s.log.Warnf(logging.CategorySupervisor, "worker_dead",
				"found worker dead (%v), starting replacement", err)
			s.discard(w)
			s.met.RecordRestart()
		}
	}
	s.w = startWorker(ctx, s.factory)
	s.log.Infof(logging.CategorySupervisor, "worker_started", "worker started")
	return s.w, nil
}

// afterExit classifies a worker death observed mid-request. A nil
// return means "crash, retry"; anything else escalates.
func (s *Supervisor) afterExit(w *worker, item step.Item, attempt int) error {
	reason, err := w.exitState()
	s.discard(w)
	switch reason {
	case exitInterrupted:
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	case exitFatal:
		return err
	default:
		s.log.Warnf(logging.CategorySupervisor, "worker_crashed",
			"worker died during %s/%s (attempt %d): %v",
			item.CollectionID, item.StepName, attempt, err)
		s.met.RecordRestart()
		return nil
	}
}

// discard forgets the worker and reaps whatever browser tree it owned.
// The worker's own deferred session close normally handles teardown;
// the reap is the backstop for a worker that died before it could.
func (s *Supervisor) discard(w *worker) {
	if s.w == w {
		s.w = nil
	}
	w.cancel()
	<-w.done
	_ = reaper.Reap(int(w.pid.Load()), s.cfg.ReapGrace)
}

// terminate forcibly ends a worker that is still running: mark it
// killed so its exit reads as a crash, cancel it, and reap its browser
// tree so a wedged browser cannot outlive it.
func (s *Supervisor) terminate(w *worker) {
	w.killed.Store(true)
	w.cancel()
	_ = reaper.Reap(int(w.pid.Load()), s.cfg.ReapGrace)
	<-w.done
	if s.w == w {
		s.w = nil
	}
}

// Close tears the current worker down: close the request channel so it
// finishes in-flight work, pause briefly, then escalate if it has not
// exited within the grace bound. Idempotent.
func (s *Supervisor) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	w := s.w
	s.w = nil
	if w == nil {
		return nil
	}

	close(w.requests)
	time.Sleep(s.cfg.ClosePause)

	select {
	case <-w.done:
	case <-time.After(s.cfg.CloseGrace):
		s.log.Warnf(logging.CategorySupervisor, "close_escalated",
			"worker ignored polite shutdown, terminating")
		w.killed.Store(true)
		w.cancel()
		<-w.done
	}
	err := reaper.Reap(int(w.pid.Load()), s.cfg.ReapGrace)
	s.log.Infof(logging.CategorySupervisor, "closed", "supervisor closed")
	return err
}
