package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/step"
)

// Executor is the session port a worker drives. *session.Session
// implements it.
type Executor interface {
	// RunStep executes one item. A non-nil error means the executor has
	// become unusable; a Fatality error aborts the whole run.
	RunStep(ctx context.Context, item step.Item) (outcome.Outcome, error)
	// PID exposes the owned browser process for escalated teardown.
	PID() int
	Close() error
}

// Factory opens the Executor a fresh worker will own. Opening may fail
// fatally (e.g. rate-limited login), which aborts the run.
type Factory func(ctx context.Context) (Executor, error)

// envelope is the response side of the duplex channel: either an
// ordinary Outcome or a run-aborting error.
type envelope struct {
	out   outcome.Outcome
	fatal error
}

type exitReason int

const (
	exitUnknown exitReason = iota
	// exitClean: supervisor closed the request channel.
	exitClean
	// exitCrashed: the executor died or the supervisor forced
	// termination; restartable.
	exitCrashed
	// exitInterrupted: external cancellation reached the worker; never
	// restarted.
	exitInterrupted
	// exitFatal: the executor reported a run-aborting condition.
	exitFatal
)

// worker is one isolated execution context owning one session. Requests
// go in, envelopes come out; death is observable as a closed done
// channel plus a recorded exit reason. The request and reply channels
// exist exactly as long as the worker: they are created together and
// abandoned together.
type worker struct {
	requests chan step.Item
	replies  chan envelope
	done     chan struct{}
	cancel   context.CancelFunc

	// killed marks supervisor-initiated termination so the resulting
	// context cancellation is classified as a crash, not an interrupt.
	killed atomic.Bool
	pid    atomic.Int64

	mu     sync.Mutex
	reason exitReason
	err    error
}

// startWorker spawns the worker's run loop. The worker observes
// cancellation of ctx as an external interrupt.
func startWorker(ctx context.Context, factory Factory) *worker {
	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		requests: make(chan step.Item),
		replies:  make(chan envelope),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go w.run(wctx, factory)
	return w
}

func (w *worker) run(ctx context.Context, factory Factory) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.exit(exitCrashed, fmt.Errorf("worker panic: %v", r))
		}
	}()

	exec, err := factory(ctx)
	if err != nil {
		switch {
		case outcome.IsFatal(err):
			w.exit(exitFatal, err)
		case ctx.Err() != nil:
			w.exitOnCancel(ctx)
		default:
			w.exit(exitCrashed, err)
		}
		return
	}
	w.pid.Store(int64(exec.PID()))
	defer exec.Close()

	for {
		select {
		case <-ctx.Done():
			w.exitOnCancel(ctx)
			return
		case item, ok := <-w.requests:
			if !ok {
				w.exit(exitClean, nil)
				return
			}
			out, err := exec.RunStep(ctx, item)
			if err != nil {
				switch {
				case outcome.IsFatal(err):
					select {
					case w.replies <- envelope{fatal: err}:
					case <-ctx.Done():
					}
					w.exit(exitFatal, err)
				case ctx.Err() != nil:
					w.exitOnCancel(ctx)
				default:
					w.exit(exitCrashed, err)
				}
				return
			}
			select {
			case w.replies <- envelope{out: out}:
			case <-ctx.Done():
				w.exitOnCancel(ctx)
				return
			}
		}
	}
}

func (w *worker) exitOnCancel(ctx context.Context) {
	if w.killed.Load() {
		w.exit(exitCrashed, fmt.Errorf("worker terminated by supervisor"))
		return
	}
	w.exit(exitInterrupted, ctx.Err())
}

// exit records the first exit reason; later calls keep the original.
func (w *worker) exit(reason exitReason, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reason == exitUnknown {
		w.reason = reason
		w.err = err
	}
}

func (w *worker) exitState() (exitReason, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason, w.err
}

func (w *worker) alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}
