// Package engine wires the resolution chain, exclusion detector, and
// replacement executor into one service object. It is constructed once at
// startup and passed by reference; there is no ambient global state. The
// engine owns nothing in the host: every operation re-validates the surface
// it is handed, and nothing learned from one call is trusted on the next.
package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"textwarden/internal/analysis"
	"textwarden/internal/clipboard"
	"textwarden/internal/config"
	"textwarden/internal/exclusion"
	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/logging"
	"textwarden/internal/position"
	"textwarden/internal/replace"
	"textwarden/internal/textindex"
)

// ErrStaleSnapshot rejects a replacement whose snapshot is no longer the
// surface's current one. The pending context is discarded unexecuted; the
// surrounding system must produce fresh spans from the new text.
var ErrStaleSnapshot = errors.New("engine: snapshot is stale")

// Target identifies one host surface for an engine operation. Frame is the
// element's screen frame, used by the estimate fallbacks.
type Target struct {
	HostID  string
	Surface host.Surface
	Frame   geometry.Rect
}

// Resolution pairs a span with its resolved bounds or the error that kept it
// unresolved.
type Resolution struct {
	Span   analysis.Span
	Bounds position.Bounds
	Err    error
}

// Engine is the position-resolution and replacement service.
type Engine struct {
	logs    *logging.Factory
	clip    clipboard.Clipboard
	foreign *host.Executor

	mu        sync.RWMutex
	cfg       config.Config
	runtimes  map[string]*hostRuntime
	snapshots map[string]string // surface ID -> last seen snapshot ID
}

// hostRuntime caches the per-host-profile components. Rebuilt whenever the
// configuration reloads.
type hostRuntime struct {
	profile  config.HostProfile
	chain    *position.Chain
	detector *exclusion.Detector
	replacer *replace.Executor
}

// New constructs the engine. The caller owns the clipboard implementation;
// the engine owns the serialized foreign-call executor.
func New(cfg config.Config, logs *logging.Factory, clip clipboard.Clipboard) *Engine {
	return &Engine{
		logs:      logs,
		clip:      clip,
		foreign:   host.NewExecutor(logs.For(logging.CategoryHost)),
		cfg:       cfg,
		runtimes:  make(map[string]*hostRuntime),
		snapshots: make(map[string]string),
	}
}

// Close releases the foreign-call executor.
func (e *Engine) Close() {
	e.foreign.Close()
}

// ApplyConfig swaps in a reloaded configuration. Cached per-host runtimes
// are dropped and rebuilt lazily against the new profile table.
func (e *Engine) ApplyConfig(cfg config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.runtimes = make(map[string]*hostRuntime)
}

// DetectZones runs exclusion detection for text as shown in the target.
func (e *Engine) DetectZones(ctx context.Context, t Target, text string) []exclusion.Zone {
	rt := e.runtime(t.HostID)
	surface := e.queryGuard(t.Surface)
	return rt.detector.Detect(ctx, text, surface)
}

// Resolve maps one span to a screen rectangle. Exclusion filtering is the
// caller's job (spans are normally filtered once per snapshot via
// ResolveAll); this is the per-span on-demand path the renderer uses after
// scroll or resize, recomputed every time and never cached.
func (e *Engine) Resolve(ctx context.Context, t Target, snapshot analysis.Snapshot, span analysis.Span) (position.Bounds, error) {
	rt := e.runtime(t.HostID)
	if !rt.replacer.BeginResolution(t.Surface.ID()) {
		// Mid-replacement queries would describe a document state that
		// is about to be wrong.
		return position.Bounds{}, replace.ErrInFlight
	}
	defer rt.replacer.EndResolution(t.Surface.ID())
	return e.resolveSpan(ctx, rt, t, snapshot, span)
}

// ResolveAll filters the snapshot's spans through exclusion detection and
// resolves the survivors. Resolution is read-only, so spans run in parallel;
// the whole pass is refused while a replacement is in flight on the surface,
// and a replacement arriving mid-pass waits until the pass finishes.
func (e *Engine) ResolveAll(ctx context.Context, t Target, snapshot analysis.Snapshot) ([]Resolution, error) {
	rt := e.runtime(t.HostID)
	if !rt.replacer.BeginResolution(t.Surface.ID()) {
		return nil, replace.ErrInFlight
	}
	defer rt.replacer.EndResolution(t.Surface.ID())
	e.noteSnapshot(t.Surface.ID(), snapshot.ID)

	surface := e.queryGuard(t.Surface)
	zones := rt.detector.Detect(ctx, snapshot.Text, surface)
	spans := exclusion.FilterSpans(snapshot.Text, snapshot.Spans, zones)

	results := make([]Resolution, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	for i, span := range spans {
		g.Go(func() error {
			bounds, err := e.resolveSpan(gctx, rt, t, snapshot, span)
			results[i] = Resolution{Span: span, Bounds: bounds, Err: err}
			return nil // per-span failure never fails the pass
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AttemptReplacement validates staleness and runs the replacement pipeline
// under the replacement timeout.
func (e *Engine) AttemptReplacement(ctx context.Context, t Target, rc replace.Context) (replace.Outcome, error) {
	e.mu.RLock()
	current, known := e.snapshots[t.Surface.ID()]
	timeout := e.cfg.Timeouts.Replacement.Std()
	e.mu.RUnlock()
	if known && rc.SnapshotID != "" && rc.SnapshotID != current {
		return replace.Outcome{}, ErrStaleSnapshot
	}

	rt := e.runtime(t.HostID)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	guarded := rc
	guarded.Surface = e.mutationGuard(rc.Surface)
	return rt.replacer.Replace(ctx, guarded)
}

// InvalidateSnapshot discards the recorded snapshot for a surface, called by
// the surrounding system when extracted text changes while work is pending.
func (e *Engine) InvalidateSnapshot(surfaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.snapshots, surfaceID)
}

func (e *Engine) resolveSpan(ctx context.Context, rt *hostRuntime, t Target, snapshot analysis.Snapshot, span analysis.Span) (position.Bounds, error) {
	units, err := textindex.GraphemesToUTF16(snapshot.Text, span.Range)
	if err != nil {
		return position.Bounds{}, err
	}
	return rt.chain.Resolve(ctx, position.Request{
		Text:    snapshot.Text,
		Range:   units,
		Surface: e.queryGuard(t.Surface),
		Profile: rt.profile,
		Frame:   t.Frame,
	})
}

func (e *Engine) runtime(hostID string) *hostRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtimes[hostID]; ok {
		return rt
	}
	profile := e.cfg.ProfileFor(hostID)
	rt := &hostRuntime{
		profile:  profile,
		chain:    position.NewChain(profile, e.logs.For(logging.CategoryResolution)),
		detector: exclusion.NewDetector(profile, e.logs.For(logging.CategoryExclusion)),
		replacer: replace.NewExecutor(e.clip, e.foreign, profile, e.logs.For(logging.CategoryReplacement)),
	}
	e.runtimes[hostID] = rt
	return rt
}

func (e *Engine) noteSnapshot(surfaceID, snapshotID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots[surfaceID] = snapshotID
}

func (e *Engine) queryGuard(s host.Surface) host.Surface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return host.NewGuard(s, e.cfg.Timeouts.Query.Std())
}

func (e *Engine) mutationGuard(s host.Surface) host.Surface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return host.NewGuard(s, e.cfg.Timeouts.Mutation.Std())
}
