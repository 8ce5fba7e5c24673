package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textwarden/internal/analysis"
	"textwarden/internal/clipboard"
	"textwarden/internal/config"
	"textwarden/internal/geometry"
	"textwarden/internal/host/hosttest"
	"textwarden/internal/logging"
	"textwarden/internal/position"
	"textwarden/internal/replace"
	"textwarden/internal/textindex"
)

func newTestEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg, logging.NewNopFactory(), clipboard.NewMemory())
	t.Cleanup(e.Close)
	return e
}

func fastEngine(t *testing.T) *Engine {
	return newTestEngine(t, func(cfg *config.Config) {
		profile := config.DefaultHostProfile()
		profile.PasteDelayMs = 1
		profile.SelectionDelayMs = 1
		cfg.Hosts = map[string]config.HostProfile{"editor-app": profile}
	})
}

func frameFor(f *hosttest.Fake) geometry.Rect {
	return geometry.NewRect(0, 0, 600, hosttest.LineHeight)
}

func TestResolveDirectQuery(t *testing.T) {
	e := newTestEngine(t, nil)
	fake := hosttest.New("doc", "Teh cat sat")
	snap := analysis.NewSnapshot(fake.Text, []analysis.Span{{
		Range:        textindex.NewRange(0, 3),
		Category:     "spelling",
		OriginalText: "Teh",
	}})

	b, err := e.Resolve(context.Background(), Target{HostID: "editor-app", Surface: fake}, snap, snap.Spans[0])
	require.NoError(t, err)
	assert.Equal(t, position.StrategyDirectQuery, b.Strategy)
	assert.InDelta(t, 3*hosttest.CharWidth, b.Rect.Size.Width, 0.001)
}

func TestResolveAllFiltersExcludedSpans(t *testing.T) {
	e := newTestEngine(t, nil)
	fake := hosttest.New("doc", "Use teh codeword here")
	fake.Attrs = []hosttest.AttrSpan{{
		Range: textindex.NewRange(8, 16),
		Name:  "background-color",
		Value: "code-fence",
	}}
	snap := analysis.NewSnapshot(fake.Text, []analysis.Span{
		{Range: textindex.NewRange(4, 7), Category: "spelling", OriginalText: "teh"},
		{Range: textindex.NewRange(8, 16), Category: "spelling", OriginalText: "codeword"},
	})

	results, err := e.ResolveAll(context.Background(), Target{HostID: "editor-app", Surface: fake}, snap)
	require.NoError(t, err)

	// The span inside the code zone never reaches the chain.
	require.Len(t, results, 1)
	assert.Equal(t, "teh", results[0].Span.OriginalText)
	require.NoError(t, results[0].Err)
	assert.Equal(t, position.StrategyDirectQuery, results[0].Bounds.Strategy)
}

func TestResolveAllSurvivesUnresolvableSpan(t *testing.T) {
	e := newTestEngine(t, nil)
	fake := hosttest.New("doc", "short text")
	snap := analysis.NewSnapshot(fake.Text, []analysis.Span{
		{Range: textindex.NewRange(0, 5), OriginalText: "short"},
		{Range: textindex.NewRange(0, 500), OriginalText: "bogus"},
	})

	results, err := e.ResolveAll(context.Background(), Target{HostID: "editor-app", Surface: fake}, snap)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.Span.OriginalText == "bogus" {
			assert.Error(t, r.Err)
		} else {
			assert.NoError(t, r.Err)
		}
	}
}

func TestAttemptReplacement(t *testing.T) {
	e := fastEngine(t)
	fake := hosttest.New("doc", "Teh cat")
	fake.PasteReplacement = "The"
	target := Target{HostID: "editor-app", Surface: fake}

	snap := analysis.NewSnapshot(fake.Text, nil)
	_, err := e.ResolveAll(context.Background(), target, snap)
	require.NoError(t, err)

	outcome, err := e.AttemptReplacement(context.Background(), target, replace.Context{
		Surface:     fake,
		Range:       textindex.NewRange(0, 3),
		ErrorText:   "Teh",
		Suggestion:  "The",
		CurrentText: "Teh cat",
		SnapshotID:  snap.ID,
	})
	require.NoError(t, err)
	assert.True(t, outcome.PlainText)
	assert.Equal(t, "The cat", fake.Text)
}

func TestAttemptReplacementStaleSnapshot(t *testing.T) {
	e := fastEngine(t)
	fake := hosttest.New("doc", "Teh cat")
	target := Target{HostID: "editor-app", Surface: fake}

	snap := analysis.NewSnapshot(fake.Text, nil)
	_, err := e.ResolveAll(context.Background(), target, snap)
	require.NoError(t, err)

	// A context carrying an older snapshot's ID is discarded unexecuted.
	_, err = e.AttemptReplacement(context.Background(), target, replace.Context{
		Surface:     fake,
		Range:       textindex.NewRange(0, 3),
		ErrorText:   "Teh",
		Suggestion:  "The",
		CurrentText: "Teh cat",
		SnapshotID:  "an-earlier-snapshot",
	})
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Equal(t, 0, fake.PasteCount)

	e.InvalidateSnapshot(fake.ID())
	_, err = e.AttemptReplacement(context.Background(), target, replace.Context{
		Surface:     fake,
		Range:       textindex.NewRange(0, 3),
		ErrorText:   "Teh",
		Suggestion:  "The",
		CurrentText: "Teh cat",
		SnapshotID:  "an-earlier-snapshot",
	})
	require.NoError(t, err)
}

func TestResolveRefusedDuringReplacement(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		profile := config.DefaultHostProfile()
		profile.PasteDelayMs = 1
		profile.SelectionDelayMs = 1
		cfg.Hosts = map[string]config.HostProfile{"editor-app": profile}
		// Keep the paste blocked long enough to observe the refusal.
		cfg.Timeouts.Mutation = config.Duration(5 * time.Second)
		cfg.Timeouts.Replacement = config.Duration(5 * time.Second)
	})
	fake := hosttest.New("doc", "Teh cat")
	fake.PasteReplacement = "The"
	fake.BlockPaste = make(chan struct{})
	target := Target{HostID: "editor-app", Surface: fake}
	snap := analysis.NewSnapshot(fake.Text, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.AttemptReplacement(context.Background(), target, replace.Context{
			Surface:     fake,
			Range:       textindex.NewRange(0, 3),
			ErrorText:   "Teh",
			Suggestion:  "The",
			CurrentText: "Teh cat",
		})
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := e.ResolveAll(context.Background(), target, snap)
		return err != nil
	}, 2*time.Second, 2*time.Millisecond)
	_, err := e.ResolveAll(context.Background(), target, snap)
	assert.ErrorIs(t, err, replace.ErrInFlight)

	close(fake.BlockPaste)
	require.NoError(t, <-done)

	_, err = e.ResolveAll(context.Background(), target, snap)
	require.NoError(t, err)
}

func TestReplacementWaitsForResolutionPass(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		profile := config.DefaultHostProfile()
		profile.PasteDelayMs = 1
		profile.SelectionDelayMs = 1
		cfg.Hosts = map[string]config.HostProfile{"editor-app": profile}
		// Keep the parked bounds query from timing out under the guard.
		cfg.Timeouts.Query = config.Duration(5 * time.Second)
		cfg.Timeouts.Mutation = config.Duration(5 * time.Second)
		cfg.Timeouts.Replacement = config.Duration(5 * time.Second)
	})
	fake := hosttest.New("doc", "Teh cat")
	fake.PasteReplacement = "The"
	fake.BlockBounds = make(chan struct{})
	target := Target{HostID: "editor-app", Surface: fake}
	snap := analysis.NewSnapshot(fake.Text, []analysis.Span{
		{Range: textindex.NewRange(0, 3), OriginalText: "Teh"},
	})

	// Park a resolution pass inside its bounds query.
	passDone := make(chan error, 1)
	go func() {
		_, err := e.ResolveAll(context.Background(), target, snap)
		passDone <- err
	}()
	// Exclusion detection runs after the pass is admitted, so a recorded
	// attribute query means the pass owns the surface.
	require.Eventually(t, func() bool {
		return fake.CallCount("QueryAttribute") > 0
	}, 2*time.Second, time.Millisecond)

	// A replacement accepted mid-pass must wait for the pass, not run
	// interleaved with it.
	replDone := make(chan error, 1)
	go func() {
		_, err := e.AttemptReplacement(context.Background(), target, replace.Context{
			Surface:     fake,
			Range:       textindex.NewRange(0, 3),
			ErrorText:   "Teh",
			Suggestion:  "The",
			CurrentText: "Teh cat",
		})
		replDone <- err
	}()

	// Once the replacement has claimed the surface, new passes are
	// refused even though the replacement itself is still waiting.
	empty := analysis.NewSnapshot(fake.Text, nil)
	emptyTarget := Target{HostID: "editor-app", Surface: fake}
	require.Eventually(t, func() bool {
		_, err := e.ResolveAll(context.Background(), emptyTarget, empty)
		return errors.Is(err, replace.ErrInFlight)
	}, 2*time.Second, 2*time.Millisecond)

	// The waiting replacement must not have touched the document.
	assert.Zero(t, fake.CallCount("SetSelection"))
	select {
	case err := <-replDone:
		t.Fatalf("replacement ran during resolution pass: %v", err)
	default:
	}

	close(fake.BlockBounds)
	require.NoError(t, <-passDone)
	require.NoError(t, <-replDone)
	assert.Equal(t, "The cat", fake.Text)
}

func TestApplyConfigRebuildsRuntimes(t *testing.T) {
	e := newTestEngine(t, nil)
	fake := hosttest.New("doc", "plain words only")
	snap := analysis.NewSnapshot(fake.Text, []analysis.Span{
		{Range: textindex.NewRange(0, 5), OriginalText: "plain"},
	})
	target := Target{HostID: "editor-app", Surface: fake}

	_, err := e.Resolve(context.Background(), target, snap, snap.Spans[0])
	require.NoError(t, err)

	// The reloaded profile skips direct query; the cached chain must go.
	cfg := config.Default()
	profile := config.DefaultHostProfile()
	profile.SkipDirectQuery = true
	profile.StrategyOrder = []string{position.StrategyDirectQuery, position.StrategyFontEstimate}
	cfg.Hosts = map[string]config.HostProfile{"editor-app": profile}
	e.ApplyConfig(cfg)

	b, err := e.Resolve(context.Background(), Target{HostID: "editor-app", Surface: fake, Frame: frameFor(fake)}, snap, snap.Spans[0])
	require.NoError(t, err)
	assert.Equal(t, position.StrategyFontEstimate, b.Strategy)
}
