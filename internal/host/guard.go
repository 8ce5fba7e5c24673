package host

import (
	"context"
	"time"

	"textwarden/internal/geometry"
	"textwarden/internal/textindex"
)

// Guard wraps a Surface so every foreign call carries an explicit deadline.
// A call that outlives the deadline is reported as ErrHostUnresponsive and
// its eventual result is dropped; the caller never hangs on a stuck host.
type Guard struct {
	inner   Surface
	timeout time.Duration
}

var _ Surface = (*Guard)(nil)

// NewGuard wraps surface with a per-call timeout.
func NewGuard(surface Surface, timeout time.Duration) *Guard {
	return &Guard{inner: surface, timeout: timeout}
}

// Unwrap returns the guarded surface.
func (g *Guard) Unwrap() Surface { return g.inner }

func (g *Guard) ID() string { return g.inner.ID() }

func (g *Guard) QueryBounds(ctx context.Context, r textindex.Range) (geometry.Rect, error) {
	return call(ctx, g, "QueryBounds", func(ctx context.Context) (geometry.Rect, error) {
		return g.inner.QueryBounds(ctx, r)
	})
}

func (g *Guard) QueryChildren(ctx context.Context) ([]Child, error) {
	return call(ctx, g, "QueryChildren", func(ctx context.Context) ([]Child, error) {
		return g.inner.QueryChildren(ctx)
	})
}

func (g *Guard) QueryText(ctx context.Context, r textindex.Range) (string, error) {
	return call(ctx, g, "QueryText", func(ctx context.Context) (string, error) {
		return g.inner.QueryText(ctx, r)
	})
}

func (g *Guard) QueryRichPayload(ctx context.Context, r textindex.Range) ([]byte, error) {
	return call(ctx, g, "QueryRichPayload", func(ctx context.Context) ([]byte, error) {
		return g.inner.QueryRichPayload(ctx, r)
	})
}

func (g *Guard) QueryAttribute(ctx context.Context, name string, r textindex.Range) (string, error) {
	return call(ctx, g, "QueryAttribute", func(ctx context.Context) (string, error) {
		return g.inner.QueryAttribute(ctx, name, r)
	})
}

func (g *Guard) TextLength(ctx context.Context) (int, error) {
	return call(ctx, g, "TextLength", func(ctx context.Context) (int, error) {
		return g.inner.TextLength(ctx)
	})
}

func (g *Guard) LineForIndex(ctx context.Context, index int) (int, error) {
	return call(ctx, g, "LineForIndex", func(ctx context.Context) (int, error) {
		return g.inner.LineForIndex(ctx, index)
	})
}

func (g *Guard) BoundsForLine(ctx context.Context, line int) (geometry.Rect, error) {
	return call(ctx, g, "BoundsForLine", func(ctx context.Context) (geometry.Rect, error) {
		return g.inner.BoundsForLine(ctx, line)
	})
}

func (g *Guard) SetSelection(ctx context.Context, r textindex.Range) error {
	_, err := call(ctx, g, "SetSelection", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.SetSelection(ctx, r)
	})
	return err
}

func (g *Guard) ReadSelection(ctx context.Context) (string, error) {
	return call(ctx, g, "ReadSelection", func(ctx context.Context) (string, error) {
		return g.inner.ReadSelection(ctx)
	})
}

func (g *Guard) InjectPaste(ctx context.Context) error {
	_, err := call(ctx, g, "InjectPaste", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.InjectPaste(ctx)
	})
	return err
}

func (g *Guard) ProbeLiveness(ctx context.Context) error {
	_, err := call(ctx, g, "ProbeLiveness", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.ProbeLiveness(ctx)
	})
	return err
}

type result[T any] struct {
	value T
	err   error
}

// call runs one foreign call under the guard's deadline. The inner call keeps
// running in its goroutine if the deadline fires first; foreign calls cannot
// be interrupted, only abandoned.
func call[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{value: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			var zero T
			return zero, &QueryError{Op: op, Surface: g.inner.ID(), Err: res.err}
		}
		return res.value, nil
	case <-ctx.Done():
		var zero T
		return zero, &QueryError{Op: op, Surface: g.inner.ID(), Err: ErrHostUnresponsive}
	}
}
