package host

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrExecutorClosed is returned for calls submitted after Close.
var ErrExecutorClosed = errors.New("host: executor closed")

type call0 struct {
	label string
	fn    func() error
	done  chan error
}

// Executor serializes side-effecting foreign calls (selection, clipboard,
// paste injection) onto one goroutine. Interleaved selection+paste sequences
// against the same element corrupt each other, so everything that mutates
// host state funnels through here in submission order.
type Executor struct {
	calls  chan call0
	log    *zap.Logger
	closed sync.Once
	quit   chan struct{}
}

// NewExecutor starts the executor goroutine.
func NewExecutor(log *zap.Logger) *Executor {
	e := &Executor{
		calls: make(chan call0),
		log:   log,
		quit:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	for {
		select {
		case c := <-e.calls:
			c.done <- c.fn()
		case <-e.quit:
			return
		}
	}
}

// Do runs fn on the executor goroutine and waits for it to finish or for ctx
// to expire. On expiry the call still completes inside the executor; only the
// wait is abandoned, so a slow call delays later submissions rather than
// overlapping them.
func (e *Executor) Do(ctx context.Context, label string, fn func() error) error {
	c := call0{label: label, fn: fn, done: make(chan error, 1)}
	select {
	case e.calls <- c:
	case <-e.quit:
		return ErrExecutorClosed
	case <-ctx.Done():
		return &QueryError{Op: label, Surface: "executor", Err: ErrHostUnresponsive}
	}

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		e.log.Warn("foreign call abandoned after timeout", zap.String("call", label))
		return &QueryError{Op: label, Surface: "executor", Err: ErrHostUnresponsive}
	}
}

// Close stops the executor. In-flight calls finish; queued calls are dropped.
func (e *Executor) Close() {
	e.closed.Do(func() { close(e.quit) })
}
