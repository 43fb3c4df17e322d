package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/step"
)

// scriptedExec drives the worker from a test-supplied step function.
type scriptedExec struct {
	run    func(ctx context.Context, item step.Item) (outcome.Outcome, error)
	closes atomic.Int32
}

func (e *scriptedExec) RunStep(ctx context.Context, item step.Item) (outcome.Outcome, error) {
	return e.run(ctx, item)
}

func (e *scriptedExec) PID() int { return 0 }

func (e *scriptedExec) Close() error {
	e.closes.Add(1)
	return nil
}

func fastConfig() Config {
	return Config{
		MaxAttempts:     DefaultMaxAttempts,
		ResponseTimeout: 2 * time.Second,
		ClosePause:      time.Millisecond,
		CloseGrace:      time.Second,
		ReapGrace:       10 * time.Millisecond,
	}
}

var testItem = step.Item{CollectionID: "000003", StepName: "landing"}

func TestExecuteHealthyWorker(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			return outcome.Duration(1.25), nil
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	out, err := s.Execute(context.Background(), testItem)
	require.NoError(t, err)
	assert.Equal(t, outcome.Duration(1.25), out)

	// Second item reuses the live worker.
	out, err = s.Execute(context.Background(), step.Item{CollectionID: "000004", StepName: "landing"})
	require.NoError(t, err)
	assert.True(t, out.IsSuccess())
	assert.Equal(t, int32(1), opened.Load())
}

func TestExecuteRestartsAfterCrash(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		n := opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			if n == 1 {
				return outcome.Outcome{}, errors.New("invalid session id")
			}
			return outcome.Duration(3.5), nil
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	out, err := s.Execute(context.Background(), testItem)
	require.NoError(t, err, "a crash must be retried transparently")
	assert.Equal(t, outcome.Duration(3.5), out, "retried outcome must look like a first-try success")
	assert.Equal(t, int32(2), opened.Load())
}

func TestExecutePanicCountsAsCrash(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		n := opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			if n == 1 {
				panic("browser went away")
			}
			return outcome.Duration(0.5), nil
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	out, err := s.Execute(context.Background(), testItem)
	require.NoError(t, err)
	assert.True(t, out.IsSuccess())
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			return outcome.Outcome{}, errors.New("chrome not reachable")
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	_, err := s.Execute(context.Background(), testItem)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(DefaultMaxAttempts), opened.Load(), "no sixth attempt allowed")
}

func TestExecuteFatalityShortCircuits(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			return outcome.Outcome{}, outcome.Fatal("identity provider is rate limiting logins")
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	_, err := s.Execute(context.Background(), testItem)
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
	assert.Equal(t, int32(1), opened.Load(), "fatalities are never retried")
}

func TestExecuteFatalOpenShortCircuits(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		opened.Add(1)
		return nil, outcome.Fatal("rate limited during login")
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	_, err := s.Execute(context.Background(), testItem)
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
	assert.Equal(t, int32(1), opened.Load())
}

func TestExecuteInterruptPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	factory := func(context.Context) (Executor, error) {
		return &scriptedExec{run: func(ctx context.Context, _ step.Item) (outcome.Outcome, error) {
			close(started)
			<-ctx.Done()
			return outcome.Outcome{}, ctx.Err()
		}}, nil
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	defer s.Close()

	go func() {
		<-started
		cancel()
	}()

	_, err := s.Execute(ctx, testItem)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted, "an interrupt must never be classified as a retryable crash")

	// The interrupted state sticks: later items escalate too instead of
	// silently restarting.
	_, err = s.Execute(ctx, step.Item{CollectionID: "000004", StepName: "landing"})
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestExecuteUnresponsiveWorkerKilled(t *testing.T) {
	var opened atomic.Int32
	factory := func(context.Context) (Executor, error) {
		n := opened.Add(1)
		return &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
			if n == 1 {
				// Ignores cancellation for a while: a wedged browser.
				time.Sleep(300 * time.Millisecond)
				return outcome.Duration(9), nil
			}
			return outcome.Duration(0.75), nil
		}}, nil
	}
	cfg := fastConfig()
	cfg.ResponseTimeout = 50 * time.Millisecond
	s := New(factory, cfg, logging.Nop(), nil)
	defer s.Close()

	out, err := s.Execute(context.Background(), testItem)
	require.NoError(t, err)
	assert.Equal(t, outcome.Duration(0.75), out)
	assert.Equal(t, int32(2), opened.Load())
}

func TestCloseReleasesExecutor(t *testing.T) {
	exec := &scriptedExec{run: func(context.Context, step.Item) (outcome.Outcome, error) {
		return outcome.Duration(1), nil
	}}
	factory := func(context.Context) (Executor, error) { return exec, nil }
	s := New(factory, fastConfig(), logging.Nop(), nil)

	_, err := s.Execute(context.Background(), testItem)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), exec.closes.Load())

	// Idempotent, and Execute refuses afterwards.
	require.NoError(t, s.Close())
	_, err = s.Execute(context.Background(), testItem)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWithoutWorker(t *testing.T) {
	factory := func(context.Context) (Executor, error) {
		return nil, fmt.Errorf("never called")
	}
	s := New(factory, fastConfig(), logging.Nop(), nil)
	require.NoError(t, s.Close())
}
