// Package hosttest provides a scriptable in-memory Surface for tests. The
// fake indexes text in UTF-16 code units like a real host and supports the
// failure injection the engine's fallback paths are built around.
package hosttest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// Metrics for the fake's synthetic single-line layout.
const (
	CharWidth  = 8.0
	LineHeight = 16.0
)

// AttrSpan assigns an attribute value to a range of the fake's text.
type AttrSpan struct {
	Range textindex.Range
	Name  string
	Value string
}

// Fake is a scriptable host surface.
type Fake struct {
	mu sync.Mutex

	Name  string
	Text  string
	Alive bool

	// Children returned by QueryChildren.
	Children []host.Child

	// Attrs drives QueryAttribute; units of overlap win in range order.
	Attrs []AttrSpan

	// RichPayload is returned by QueryRichPayload regardless of range;
	// nil means the host has no rich representation.
	RichPayload []byte

	// MaxAttrRange makes QueryAttribute fail for ranges longer than this,
	// mimicking hosts whose range queries break near text end. Zero means
	// no limit.
	MaxAttrRange int

	// ZeroBounds makes QueryBounds answer with a degenerate rect, the way
	// Chromium-derived hosts answer root-element range queries.
	ZeroBounds bool

	// Errs injects a failure for the named operation.
	Errs map[string]error

	// Selection state after SetSelection.
	Selection    textindex.Range
	HasSelection bool

	// ReadSelectionOverride, when non-empty, is what ReadSelection
	// returns regardless of the selection state, emulating a selection
	// that landed on different content than requested.
	ReadSelectionOverride string

	// PasteReplacement, when non-empty, is spliced over the selection on
	// InjectPaste, emulating the host applying a paste.
	PasteReplacement string
	PasteCount       int

	// BlockPaste, when non-nil, parks InjectPaste until the channel is
	// closed, for in-flight concurrency tests.
	BlockPaste chan struct{}

	// BlockBounds, when non-nil, parks QueryBounds the same way, for
	// tests that hold a resolution pass open.
	BlockBounds chan struct{}

	// Calls records operation names in order.
	Calls []string
}

var _ host.Surface = (*Fake)(nil)

// New creates a live fake surface over text.
func New(name, text string) *Fake {
	return &Fake{Name: name, Text: text, Alive: true}
}

func (f *Fake) record(op string) {
	f.Calls = append(f.Calls, op)
}

// CallCount reports how many recorded calls start with op. Safe to read
// while other goroutines use the fake.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op) {
			n++
		}
	}
	return n
}

func (f *Fake) ID() string { return f.Name }

func (f *Fake) QueryBounds(_ context.Context, r textindex.Range) (geometry.Rect, error) {
	if f.BlockBounds != nil {
		<-f.BlockBounds
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QueryBounds")
	if err := f.Errs["QueryBounds"]; err != nil {
		return geometry.Rect{}, err
	}
	if f.ZeroBounds {
		return geometry.Rect{}, nil
	}
	if !f.inBounds(r) {
		return geometry.Rect{}, host.ErrUnavailable
	}
	return geometry.NewRect(float64(r.Start)*CharWidth, 0, float64(r.Len())*CharWidth, LineHeight), nil
}

func (f *Fake) QueryChildren(_ context.Context) ([]host.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QueryChildren")
	if err := f.Errs["QueryChildren"]; err != nil {
		return nil, err
	}
	return f.Children, nil
}

func (f *Fake) QueryText(_ context.Context, r textindex.Range) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QueryText")
	if err := f.Errs["QueryText"]; err != nil {
		return "", err
	}
	s, ok := utf16Slice(f.Text, r)
	if !ok {
		return "", host.ErrUnavailable
	}
	return s, nil
}

func (f *Fake) QueryRichPayload(_ context.Context, r textindex.Range) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QueryRichPayload")
	if err := f.Errs["QueryRichPayload"]; err != nil {
		return nil, err
	}
	if f.RichPayload == nil {
		return nil, host.ErrUnavailable
	}
	return f.RichPayload, nil
}

func (f *Fake) QueryAttribute(_ context.Context, name string, r textindex.Range) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("QueryAttribute:%d-%d", r.Start, r.End))
	if err := f.Errs["QueryAttribute"]; err != nil {
		return "", err
	}
	if f.MaxAttrRange > 0 && r.Len() > f.MaxAttrRange {
		return "", host.ErrUnavailable
	}
	if !f.inBounds(r) {
		return "", host.ErrUnavailable
	}
	// Real hosts answer attribute queries only for ranges with a uniform
	// value; a range mixing styled and unstyled text fails, which is what
	// forces callers to shrink their chunks.
	for _, span := range f.Attrs {
		if span.Name != name || !span.Range.Overlaps(r) {
			continue
		}
		if span.Range.Start <= r.Start && span.Range.End >= r.End {
			return span.Value, nil
		}
		return "", host.ErrUnavailable
	}
	return "", nil
}

func (f *Fake) TextLength(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TextLength")
	if err := f.Errs["TextLength"]; err != nil {
		return 0, err
	}
	return textindex.UTF16Length(f.Text), nil
}

func (f *Fake) LineForIndex(_ context.Context, index int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LineForIndex")
	if err := f.Errs["LineForIndex"]; err != nil {
		return 0, err
	}
	prefix, ok := utf16Slice(f.Text, textindex.NewRange(0, index))
	if !ok {
		return 0, host.ErrUnavailable
	}
	return strings.Count(prefix, "\n"), nil
}

func (f *Fake) BoundsForLine(_ context.Context, line int) (geometry.Rect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BoundsForLine")
	if err := f.Errs["BoundsForLine"]; err != nil {
		return geometry.Rect{}, err
	}
	lines := strings.Split(f.Text, "\n")
	if line < 0 || line >= len(lines) {
		return geometry.Rect{}, host.ErrUnavailable
	}
	return geometry.NewRect(0, float64(line)*LineHeight, float64(len(lines[line]))*CharWidth, LineHeight), nil
}

func (f *Fake) SetSelection(_ context.Context, r textindex.Range) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetSelection")
	if err := f.Errs["SetSelection"]; err != nil {
		return err
	}
	if !f.inBounds(r) {
		return host.ErrUnavailable
	}
	f.Selection = r
	f.HasSelection = true
	return nil
}

func (f *Fake) ReadSelection(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReadSelection")
	if err := f.Errs["ReadSelection"]; err != nil {
		return "", err
	}
	if f.ReadSelectionOverride != "" {
		return f.ReadSelectionOverride, nil
	}
	if !f.HasSelection {
		return "", nil
	}
	s, ok := utf16Slice(f.Text, f.Selection)
	if !ok {
		return "", host.ErrUnavailable
	}
	return s, nil
}

func (f *Fake) InjectPaste(_ context.Context) error {
	if f.BlockPaste != nil {
		<-f.BlockPaste
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InjectPaste")
	if err := f.Errs["InjectPaste"]; err != nil {
		return err
	}
	f.PasteCount++
	if f.PasteReplacement != "" && f.HasSelection {
		before, _ := utf16Slice(f.Text, textindex.NewRange(0, f.Selection.Start))
		afterLen := textindex.UTF16Length(f.Text)
		after, _ := utf16Slice(f.Text, textindex.NewRange(f.Selection.End, afterLen))
		f.Text = before + f.PasteReplacement + after
		f.HasSelection = false
	}
	return nil
}

func (f *Fake) ProbeLiveness(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ProbeLiveness")
	if err := f.Errs["ProbeLiveness"]; err != nil {
		return err
	}
	if !f.Alive {
		return fmt.Errorf("%w: element gone", host.ErrUnavailable)
	}
	return nil
}

func (f *Fake) inBounds(r textindex.Range) bool {
	return r.IsValid() && r.End <= textindex.UTF16Length(f.Text)
}

// utf16Slice cuts text by a UTF-16 code-unit range.
func utf16Slice(text string, r textindex.Range) (string, bool) {
	if !r.IsValid() {
		return "", false
	}
	units := utf16.Encode([]rune(text))
	if r.End > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[r.Start:r.End])), true
}
