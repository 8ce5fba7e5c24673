package replace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"textwarden/internal/clipboard"
	"textwarden/internal/config"
	"textwarden/internal/delta"
	"textwarden/internal/host"
	"textwarden/internal/host/hosttest"
	"textwarden/internal/pickle"
	"textwarden/internal/textindex"
)

// recordingClipboard captures every write while delegating to memory.
type recordingClipboard struct {
	*clipboard.Memory
	writes []clipboard.Payload
}

func (r *recordingClipboard) Write(p clipboard.Payload) error {
	r.writes = append(r.writes, p)
	return r.Memory.Write(p)
}

func fastProfile() config.HostProfile {
	p := config.DefaultHostProfile()
	p.SelectionDelayMs = 1
	p.PasteDelayMs = 1
	return p
}

func newTestExecutor(t *testing.T, clip clipboard.Clipboard, profile config.HostProfile) *Executor {
	t.Helper()
	foreign := host.NewExecutor(zap.NewNop())
	t.Cleanup(foreign.Close)
	return NewExecutor(clip, foreign, profile, zap.NewNop())
}

func tehContext(f *hosttest.Fake) Context {
	return Context{
		Surface:     f,
		Range:       textindex.NewRange(0, 3),
		ErrorText:   "Teh",
		Suggestion:  "The",
		CurrentText: f.Text,
		SnapshotID:  "snap-1",
	}
}

func TestValidateOK(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	assert.NoError(t, Validate(context.Background(), tehContext(f)))
}

// Snapshot said "Teh cat", the user fixed it to "The cat" before accepting:
// the validator must reject with a text mismatch and nothing may mutate.
func TestValidateStaleText(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	rc := tehContext(f)
	f.Text = "The cat"

	err := Validate(context.Background(), rc)
	assert.ErrorIs(t, err, ErrTextMismatch)
}

func TestValidateDeadElement(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.Alive = false
	assert.ErrorIs(t, Validate(context.Background(), tehContext(f)), ErrElementInvalid)
}

func TestValidateOutOfBounds(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	rc := tehContext(f)
	f.Text = "Teh" // host text shrank below the stored range

	// The range still converts against the snapshot text, but exceeds the
	// element's current length in code-unit space.
	rc.Range = textindex.NewRange(4, 7)
	rc.ErrorText = "cat"
	assert.ErrorIs(t, Validate(context.Background(), rc), ErrIndexOutOfBounds)
}

func TestValidateUnconvertibleRange(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	rc := tehContext(f)
	rc.Range = textindex.NewRange(0, 99)
	assert.ErrorIs(t, Validate(context.Background(), rc), ErrIndexOutOfBounds)
}

func TestReplacePlainText(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.PasteReplacement = "The"

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	userPayload := clipboard.Payload{TypeTag: clipboard.TypePlainText, Bytes: []byte("user data")}
	require.NoError(t, clip.Memory.Write(userPayload))

	profile := fastProfile()
	profile.RichClipboard = false
	e := newTestExecutor(t, clip, profile)

	out, err := e.Replace(context.Background(), tehContext(f))
	require.NoError(t, err)
	assert.True(t, out.PlainText)
	assert.Equal(t, "The cat", f.Text)
	assert.Equal(t, 1, f.PasteCount)

	// Correction payload written, then the user's clipboard restored.
	require.Len(t, clip.writes, 2)
	assert.Equal(t, []byte("The"), clip.writes[0].Bytes)
	assert.Equal(t, userPayload, clip.writes[1])

	restored, err := clip.Read()
	require.NoError(t, err)
	assert.Equal(t, userPayload, restored)
}

func TestReplaceRichPayload(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.PasteReplacement = "The"
	f.RichPayload = []byte(`[{"insert":"Teh","attributes":{"bold":true}}]`)

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	e := newTestExecutor(t, clip, fastProfile())

	out, err := e.Replace(context.Background(), tehContext(f))
	require.NoError(t, err)
	assert.False(t, out.PlainText)

	// The corrected payload is a pickle container carrying both lanes.
	require.NotEmpty(t, clip.writes)
	written := clip.writes[0]
	assert.Equal(t, clipboard.TypeRichDelta, written.TypeTag)

	container, err := pickle.Decode(written.Bytes)
	require.NoError(t, err)
	require.Len(t, container.Entries, 2)
	assert.Equal(t, pickle.Entry{Type: clipboard.TypePlainText, Value: "The"}, container.Entries[0])

	corrected, err := delta.Parse([]byte(container.Entries[1].Value))
	require.NoError(t, err)
	require.Len(t, corrected.Ops, 1)
	assert.Equal(t, "The", corrected.Ops[0].Insert)
	assert.Equal(t, map[string]any{"bold": true}, corrected.Ops[0].Attributes)
}

// A correction spanning two runs must not merge attributes; the executor
// downgrades to plain text and still completes the replacement.
func TestReplaceMultiRunSpanDowngrades(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.PasteReplacement = "The"
	f.RichPayload = []byte(`[{"insert":"Te"},{"insert":"h","attributes":{"bold":true}}]`)

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	e := newTestExecutor(t, clip, fastProfile())

	out, err := e.Replace(context.Background(), tehContext(f))
	require.NoError(t, err)
	assert.True(t, out.PlainText)
	assert.Equal(t, "The cat", f.Text)
	assert.Equal(t, clipboard.TypePlainText, clip.writes[0].TypeTag)
}

func TestReplaceUndecodableRichPayloadDowngrades(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.PasteReplacement = "The"
	f.RichPayload = []byte(`{{{not json`)

	e := newTestExecutor(t, &recordingClipboard{Memory: clipboard.NewMemory()}, fastProfile())
	out, err := e.Replace(context.Background(), tehContext(f))
	require.NoError(t, err)
	assert.True(t, out.PlainText)
	assert.Equal(t, "The cat", f.Text)
}

// Selection readback disagreeing with the expected text aborts before any
// clipboard write, with the distinct not-reachable outcome.
func TestReplaceContentNotReachable(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.ReadSelectionOverride = "completely different"

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	e := newTestExecutor(t, clip, fastProfile())

	_, err := e.Replace(context.Background(), tehContext(f))
	assert.ErrorIs(t, err, ErrContentNotReachable)
	assert.Empty(t, clip.writes, "nothing written before the abort")
	assert.Zero(t, f.PasteCount)
}

func TestReplaceValidatorBlocksStaleMutation(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	rc := tehContext(f)
	f.Text = "The cat"

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	e := newTestExecutor(t, clip, fastProfile())

	_, err := e.Replace(context.Background(), rc)
	assert.ErrorIs(t, err, ErrTextMismatch)
	assert.Zero(t, f.PasteCount)
	assert.Empty(t, clip.writes)
	assert.Equal(t, "The cat", f.Text)
}

func TestReplaceClipboardRestoredOnPasteFailure(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	f.Errs = map[string]error{"InjectPaste": host.ErrUnavailable}

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	userPayload := clipboard.Payload{TypeTag: clipboard.TypePlainText, Bytes: []byte("precious")}
	require.NoError(t, clip.Memory.Write(userPayload))

	profile := fastProfile()
	profile.RichClipboard = false
	e := newTestExecutor(t, clip, profile)

	_, err := e.Replace(context.Background(), tehContext(f))
	require.Error(t, err)

	// The failure happened after the save point, so the user's clipboard
	// must be back.
	restored, readErr := clip.Read()
	require.NoError(t, readErr)
	assert.Equal(t, userPayload, restored)
}

func TestReplaceSingleFlightPerSurface(t *testing.T) {
	f := hosttest.New("editor", "Teh cat")
	block := make(chan struct{})
	f.PasteReplacement = "The"

	clip := &recordingClipboard{Memory: clipboard.NewMemory()}
	profile := fastProfile()
	profile.RichClipboard = false
	profile.SelectionDelayMs = 0
	e := newTestExecutor(t, clip, profile)

	// First replacement parks inside the pipeline by blocking the paste.
	blocking := hosttest.New("editor", "Teh cat")
	blocking.BlockPaste = block
	done := make(chan error, 1)
	go func() {
		_, err := e.Replace(context.Background(), Context{
			Surface:     blocking,
			Range:       textindex.NewRange(0, 3),
			ErrorText:   "Teh",
			Suggestion:  "The",
			CurrentText: "Teh cat",
		})
		done <- err
	}()

	// Wait until the first pipeline owns the surface.
	require.Eventually(t, func() bool { return e.InFlight("editor") }, time.Second, time.Millisecond)

	// Second accept against the same surface is rejected, not queued.
	_, err := e.Replace(context.Background(), tehContext(f))
	assert.ErrorIs(t, err, ErrInFlight)

	close(block)
	require.NoError(t, <-done)
	assert.False(t, e.InFlight("editor"))
}

func TestResolutionLockArbitration(t *testing.T) {
	clip := clipboard.NewMemory()
	profile := fastProfile()
	profile.RichClipboard = false
	e := newTestExecutor(t, clip, profile)

	f := hosttest.New("editor", "Teh cat")
	f.PasteReplacement = "The"
	f.BlockPaste = make(chan struct{})

	// An admitted resolution makes a replacement wait instead of running.
	require.True(t, e.BeginResolution("editor"))
	done := make(chan error, 1)
	go func() {
		_, err := e.Replace(context.Background(), tehContext(f))
		done <- err
	}()
	require.Eventually(t, func() bool { return e.InFlight("editor") }, time.Second, time.Millisecond)
	assert.Zero(t, f.CallCount("SetSelection"))

	// While the replacement holds the surface, new resolutions are refused.
	assert.False(t, e.BeginResolution("editor"))

	e.EndResolution("editor")
	close(f.BlockPaste)
	require.NoError(t, <-done)

	require.True(t, e.BeginResolution("editor"))
	e.EndResolution("editor")
}
