// Package position resolves a character range inside a host surface to an
// on-screen rectangle. No single accessibility query works across host
// applications, so resolution is an ordered chain of interchangeable
// strategies: the first one that answers wins, and a strategy that fails or
// times out simply passes the attempt to the next. Results are never blended
// across strategies and never cached across scroll or resize.
package position

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"textwarden/internal/config"
	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// ErrUnresolved reports that every strategy in the chain declined the range.
var ErrUnresolved = errors.New("position: unresolved")

// Bounds is a resolved screen rectangle with the resolving strategy's
// confidence: 1.0 for a direct host answer down to 0.2 for a pure
// font-metrics estimate.
type Bounds struct {
	Rect       geometry.Rect
	Confidence float64
	Strategy   string
}

// Request carries one resolution attempt. Range is in UTF-16 code units of
// Text; Frame is the host element's own screen frame, supplied by the
// surrounding system for the estimate fallbacks that never touch the tree.
type Request struct {
	Text    string
	Range   textindex.Range
	Surface host.Surface
	Profile config.HostProfile
	Frame   geometry.Rect
}

// Strategy is one resolution technique. Resolve returns host.ErrUnavailable
// (possibly wrapped) to decline; any other error is treated the same way by
// the chain, since a resolution failure is never fatal.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, req Request) (Bounds, error)
}

// Chain tries strategies in order and returns the first success.
type Chain struct {
	strategies []Strategy
	log        *zap.Logger
}

// defaultOrder is the canonical strategy sequence. Per-host profiles reorder
// or truncate it when earlier strategies are known-bad for that host.
var defaultOrder = []string{
	StrategyDirectQuery,
	StrategyChildTraversal,
	StrategyMarkerAnchor,
	StrategyLineCursor,
	StrategyFontEstimate,
}

// NewChain assembles the chain for one host profile.
func NewChain(profile config.HostProfile, log *zap.Logger) *Chain {
	order := profile.StrategyOrder
	if len(order) == 0 {
		order = defaultOrder
	}
	c := &Chain{log: log}
	for _, name := range order {
		if profile.SkipDirectQuery && name == StrategyDirectQuery {
			continue
		}
		if s := newStrategy(name); s != nil {
			c.strategies = append(c.strategies, s)
		} else {
			log.Warn("unknown strategy in profile", zap.String("strategy", name))
		}
	}
	return c
}

// NewChainOf builds a chain from explicit strategies, mainly for tests.
func NewChainOf(log *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, log: log}
}

// Resolve walks the chain. Partial results are never combined: each attempt
// stands alone, and the first success is the answer.
func (c *Chain) Resolve(ctx context.Context, req Request) (Bounds, error) {
	if !req.Range.IsValid() || req.Range.End > textindex.UTF16Length(req.Text) {
		return Bounds{}, ErrUnresolved
	}
	for _, s := range c.strategies {
		b, err := s.Resolve(ctx, req)
		if err != nil {
			c.log.Debug("strategy declined",
				zap.String("strategy", s.Name()),
				zap.String("range", req.Range.String()),
				zap.Error(err))
			continue
		}
		b.Strategy = s.Name()
		return b, nil
	}
	return Bounds{}, ErrUnresolved
}

func newStrategy(name string) Strategy {
	switch name {
	case StrategyDirectQuery:
		return &DirectQuery{}
	case StrategyChildTraversal:
		return &ChildTraversal{}
	case StrategyMarkerAnchor:
		return &MarkerAnchor{}
	case StrategyLineCursor:
		return &LineCursor{}
	case StrategyFontEstimate:
		return &FontEstimate{}
	default:
		return nil
	}
}
