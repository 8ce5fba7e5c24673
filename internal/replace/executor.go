package replace

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"textwarden/internal/clipboard"
	"textwarden/internal/config"
	"textwarden/internal/delta"
	"textwarden/internal/host"
	"textwarden/internal/pickle"
	"textwarden/internal/textindex"
)

// Outcome describes a completed replacement.
type Outcome struct {
	// PlainText is true when formatting extraction or delta correction
	// failed and the executor downgraded to a plain-text payload.
	// Formatting loss on the corrected word beats not correcting at all.
	PlainText bool

	Duration time.Duration
}

// Executor runs replacement pipelines. One instance serves all surfaces but
// admits at most one pipeline per surface at a time; a second accept against
// a busy surface is rejected, never queued behind an unbounded wait.
type Executor struct {
	clip    clipboard.Clipboard
	foreign *host.Executor
	profile config.HostProfile
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*surfaceLock
}

// surfaceLock arbitrates one surface between resolution passes and the
// replacement pipeline. Resolution holds the read side for a whole pass;
// a replacement claims the writing flag, then waits for readers to drain.
// The flag makes both sides fail fast instead of queueing.
type surfaceLock struct {
	mu      sync.RWMutex
	writing atomic.Bool
}

// NewExecutor creates a replacement executor.
func NewExecutor(clip clipboard.Clipboard, foreign *host.Executor, profile config.HostProfile, log *zap.Logger) *Executor {
	return &Executor{
		clip:    clip,
		foreign: foreign,
		profile: profile,
		log:     log,
		locks:   make(map[string]*surfaceLock),
	}
}

func (e *Executor) lockFor(surfaceID string) *surfaceLock {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[surfaceID]
	if !ok {
		l = &surfaceLock{}
		e.locks[surfaceID] = l
	}
	return l
}

// InFlight reports whether a replacement is currently running against the
// surface. Position resolution consults this: queries issued mid-replacement
// would describe a document state that is about to be wrong.
func (e *Executor) InFlight(surfaceID string) bool {
	return e.lockFor(surfaceID).writing.Load()
}

// BeginResolution admits a resolution pass against the surface, blocking
// replacements from starting until EndResolution. It fails fast when a
// replacement is already in flight. A replacement that arrives while the
// pass runs waits for it to finish rather than being rejected.
func (e *Executor) BeginResolution(surfaceID string) bool {
	l := e.lockFor(surfaceID)
	if l.writing.Load() {
		return false
	}
	l.mu.RLock()
	// Re-check under the read lock: a replacement may have claimed the
	// flag between the load and the RLock and be waiting on readers.
	if l.writing.Load() {
		l.mu.RUnlock()
		return false
	}
	return true
}

// EndResolution releases a pass admitted by BeginResolution.
func (e *Executor) EndResolution(surfaceID string) {
	e.lockFor(surfaceID).mu.RUnlock()
}

// Replace runs the pipeline for one accepted suggestion:
//
//	Validate -> SelectRange -> readback check -> build payload
//	-> save clipboard -> write payload -> paste -> restore clipboard
//
// The original clipboard is restored on every exit path after the save
// point. Failures before the save point leave the clipboard untouched.
func (e *Executor) Replace(ctx context.Context, rc Context) (Outcome, error) {
	start := time.Now()

	if !e.acquire(rc.Surface.ID()) {
		return Outcome{}, ErrInFlight
	}
	defer e.release(rc.Surface.ID())

	if err := Validate(ctx, rc); err != nil {
		return Outcome{}, err
	}
	units, err := rc.UTF16Range()
	if err != nil {
		// Validate already checked convertibility; losing it here means
		// the context itself is malformed.
		return Outcome{}, ErrIndexOutOfBounds
	}

	// Selection and readback. The readback is the last are-we-sure gate:
	// if the selection landed on different content (target scrolled out
	// of view, virtualized list recycled the row), abort before touching
	// the clipboard or the document.
	if err := e.foreign.Do(ctx, "SetSelection", func() error {
		return rc.Surface.SetSelection(ctx, units)
	}); err != nil {
		return Outcome{}, err
	}
	e.settle(ctx, e.profile.SelectionDelay())

	var selected string
	if err := e.foreign.Do(ctx, "ReadSelection", func() error {
		var err error
		selected, err = rc.Surface.ReadSelection(ctx)
		return err
	}); err != nil {
		return Outcome{}, err
	}
	if selected != rc.ErrorText {
		e.log.Warn("selection readback mismatch",
			zap.String("expected", rc.ErrorText),
			zap.String("selected", selected))
		return Outcome{}, ErrContentNotReachable
	}

	payload, plain := e.buildPayload(ctx, rc, units)

	// Save point: everything past here must restore the user's clipboard.
	saved, err := e.clip.Read()
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if err := e.clip.Write(saved); err != nil {
			e.log.Error("clipboard restore failed", zap.Error(err))
		}
	}()

	if err := e.clip.Write(payload); err != nil {
		return Outcome{}, err
	}
	if err := e.foreign.Do(ctx, "InjectPaste", func() error {
		return rc.Surface.InjectPaste(ctx)
	}); err != nil {
		return Outcome{}, err
	}
	e.settle(ctx, e.profile.PasteDelay())

	e.log.Info("replacement applied",
		zap.String("surface", rc.Surface.ID()),
		zap.String("range", rc.Range.String()),
		zap.Bool("plain_text", plain))
	return Outcome{PlainText: plain, Duration: time.Since(start)}, nil
}

// buildPayload produces the clipboard payload for the correction. The rich
// path extracts the host's formatted representation of the selection and
// applies the correction inside it; any failure along that path downgrades
// to plain text instead of aborting the replacement.
func (e *Executor) buildPayload(ctx context.Context, rc Context, units textindex.Range) (clipboard.Payload, bool) {
	plain := clipboard.Payload{
		TypeTag: clipboard.TypePlainText,
		Bytes:   []byte(rc.Suggestion),
	}
	if !e.profile.RichClipboard {
		return plain, true
	}

	raw, err := rc.Surface.QueryRichPayload(ctx, units)
	if err != nil {
		e.log.Debug("no rich payload for selection", zap.Error(err))
		return plain, true
	}
	d, err := delta.Parse(raw)
	if err != nil {
		e.log.Debug("rich payload undecodable, downgrading", zap.Error(err))
		return plain, true
	}
	at := strings.Index(d.PlainText(), rc.ErrorText)
	if at < 0 {
		e.log.Debug("rich payload does not contain expected text, downgrading")
		return plain, true
	}
	corrected, err := delta.ApplyCorrection(d, at, rc.ErrorText, rc.Suggestion)
	if err != nil {
		// ErrMultiRunSpan lands here: the match straddles runs and
		// merging attributes is forbidden.
		e.log.Debug("delta correction failed, downgrading", zap.Error(err))
		return plain, true
	}
	serialized, err := delta.Serialize(corrected)
	if err != nil {
		e.log.Debug("delta serialize failed, downgrading", zap.Error(err))
		return plain, true
	}

	container := pickle.Container{Entries: []pickle.Entry{
		{Type: clipboard.TypePlainText, Value: rc.Suggestion},
		{Type: clipboard.TypeRichDelta, Value: string(serialized)},
	}}
	return clipboard.Payload{
		TypeTag: clipboard.TypeRichDelta,
		Bytes:   pickle.Encode(container),
	}, false
}

// settle waits out a host-specific delay, giving the application time to
// apply a selection or paste before the next foreign call.
func (e *Executor) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// acquire claims the surface for a replacement. A concurrent replacement is
// rejected outright; an in-progress resolution pass is waited out, since it
// holds the read side only as long as its queries take.
func (e *Executor) acquire(surfaceID string) bool {
	l := e.lockFor(surfaceID)
	if !l.writing.CompareAndSwap(false, true) {
		return false
	}
	l.mu.Lock()
	return true
}

func (e *Executor) release(surfaceID string) {
	l := e.lockFor(surfaceID)
	l.writing.Store(false)
	l.mu.Unlock()
}
