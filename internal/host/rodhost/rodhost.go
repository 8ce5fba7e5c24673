// Package rodhost adapts a contenteditable element in a Chromium page to the
// host.Surface interface, using go-rod over the DevTools protocol. It is the
// reference host adapter: every query is a fresh JS evaluation against the
// live DOM, and nothing is cached between calls. DOM offsets are UTF-16 code
// units natively (JS string indexing), so no extra index translation happens
// on this side of the boundary.
package rodhost

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// Config holds the browser connection settings.
type Config struct {
	// DebuggerURL attaches to an already running browser. When empty a
	// browser is launched.
	DebuggerURL string `yaml:"debugger_url"`
	Bin         string `yaml:"bin"`
	Headless    bool   `yaml:"headless"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Headless: true}
}

// Connect attaches to or launches a browser per config.
func Connect(ctx context.Context, cfg Config) (*rod.Browser, error) {
	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return browser, nil
}

// Surface is one contenteditable element in a page.
type Surface struct {
	id       string
	page     *rod.Page
	selector string
	role     string
}

// Open navigates a new page to url and binds the element at selector.
func Open(browser *rod.Browser, url, selector string) (*Surface, error) {
	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	return &Surface{id: uuid.NewString(), page: page, selector: selector}, nil
}

// Bind attaches to an element on an existing page without navigating.
func Bind(page *rod.Page, selector string) *Surface {
	return &Surface{id: uuid.NewString(), page: page, selector: selector}
}

func (s *Surface) ID() string { return s.id }

// eval runs a JS closure against the bound element. The element selector is
// always the first argument; a null result means the element is gone.
func (s *Surface) eval(ctx context.Context, js string, args ...interface{}) ([]byte, error) {
	all := append([]interface{}{s.selector}, args...)
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: js, JSArgs: all})
	if err != nil {
		return nil, &host.QueryError{Op: "evaluate", Surface: s.id, Err: err}
	}
	if res.Value.Nil() {
		return nil, host.ErrUnavailable
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, &host.QueryError{Op: "evaluate", Surface: s.id, Err: err}
	}
	return raw, nil
}

// locateJS maps a flat UTF-16 offset into (text node, node offset) by walking
// the element's text nodes in document order. Shared preamble for every
// range-based query.
const locateJS = `
	const locate = (el, offset) => {
		const walker = document.createTreeWalker(el, NodeFilter.SHOW_TEXT);
		let seen = 0, node;
		while ((node = walker.nextNode())) {
			if (offset <= seen + node.data.length) {
				return { node, offset: offset - seen };
			}
			seen += node.data.length;
		}
		return null;
	};
	const domRange = (el, start, end) => {
		const a = locate(el, start), b = locate(el, end);
		if (!a || !b) return null;
		const r = document.createRange();
		r.setStart(a.node, a.offset);
		r.setEnd(b.node, b.offset);
		return r;
	};
`

func (s *Surface) QueryBounds(ctx context.Context, r textindex.Range) (geometry.Rect, error) {
	raw, err := s.eval(ctx, `(sel, start, end) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		`+locateJS+`
		const range = domRange(el, start, end);
		if (!range) return null;
		const b = range.getBoundingClientRect();
		return { x: b.x, y: b.y, w: b.width, h: b.height };
	}`, r.Start, r.End)
	if err != nil {
		return geometry.Rect{}, err
	}
	return rectFromJSON(raw), nil
}

func (s *Surface) QueryChildren(ctx context.Context) ([]host.Child, error) {
	raw, err := s.eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const out = [];
		for (let i = 0; i < el.children.length; i++) {
			const c = el.children[i];
			const b = c.getBoundingClientRect();
			const role = c.tagName === 'A' ? 'link' : c.tagName.toLowerCase();
			out.push({ nth: i + 1, role, x: b.x, y: b.y, w: b.width, h: b.height });
		}
		return out;
	}`)
	if err != nil {
		return nil, err
	}
	var children []host.Child
	for _, item := range gjson.ParseBytes(raw).Array() {
		sel := fmt.Sprintf("%s > *:nth-child(%d)", s.selector, item.Get("nth").Int())
		children = append(children, host.Child{
			Surface: &Surface{id: s.id + "/" + sel, page: s.page, selector: sel, role: item.Get("role").String()},
			Frame:   rectFromResult(item),
			Role:    item.Get("role").String(),
		})
	}
	return children, nil
}

func (s *Surface) QueryText(ctx context.Context, r textindex.Range) (string, error) {
	raw, err := s.eval(ctx, `(sel, start, end) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const text = el.textContent;
		if (end > text.length) return null;
		return { text: text.slice(start, end) };
	}`, r.Start, r.End)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "text").String(), nil
}

// QueryRichPayload serializes the styled runs covering the range as a delta
// document: one op per maximal stretch of uniformly styled text.
func (s *Surface) QueryRichPayload(ctx context.Context, r textindex.Range) ([]byte, error) {
	return s.eval(ctx, `(sel, start, end) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const walker = document.createTreeWalker(el, NodeFilter.SHOW_TEXT);
		const ops = [];
		let seen = 0, node;
		while ((node = walker.nextNode())) {
			const from = Math.max(start - seen, 0);
			const to = Math.min(end - seen, node.data.length);
			seen += node.data.length;
			if (from >= to) continue;
			const style = getComputedStyle(node.parentElement);
			const attrs = {};
			if (parseInt(style.fontWeight, 10) >= 600) attrs.bold = true;
			if (style.fontStyle === 'italic') attrs.italic = true;
			const anchor = node.parentElement.closest('a');
			if (anchor) attrs.link = anchor.href;
			const op = { insert: node.data.slice(from, to) };
			if (Object.keys(attrs).length) op.attributes = attrs;
			ops.push(op);
		}
		if (!ops.length) return null;
		return { ops };
	}`, r.Start, r.End)
}

// QueryAttribute answers only when the whole range carries one uniform value,
// the same contract native attributed-string APIs have. Mixed styling fails
// with host.ErrUnavailable so callers shrink their chunks.
func (s *Surface) QueryAttribute(ctx context.Context, name string, r textindex.Range) (string, error) {
	raw, err := s.eval(ctx, `(sel, name, start, end) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const classify = (node) => {
			const p = node.parentElement;
			if (p.closest('.mention, [data-mention]')) return 'mention';
			if (p.closest('blockquote')) return 'quote';
			const v = getComputedStyle(p).getPropertyValue(name);
			if (v === 'rgba(0, 0, 0, 0)' || v === 'transparent' || v === '') return '';
			return v;
		};
		const walker = document.createTreeWalker(el, NodeFilter.SHOW_TEXT);
		let seen = 0, node, value = null;
		while ((node = walker.nextNode())) {
			const overlaps = start < seen + node.data.length && end > seen;
			seen += node.data.length;
			if (!overlaps) continue;
			const v = classify(node);
			if (value === null) value = v;
			else if (value !== v) return { mixed: true };
		}
		if (value === null) return null;
		return { value };
	}`, name, r.Start, r.End)
	if err != nil {
		return "", err
	}
	if gjson.GetBytes(raw, "mixed").Bool() {
		return "", fmt.Errorf("%w: mixed attribute values in range", host.ErrUnavailable)
	}
	return gjson.GetBytes(raw, "value").String(), nil
}

func (s *Surface) TextLength(ctx context.Context) (int, error) {
	raw, err := s.eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		return { length: el.textContent.length };
	}`)
	if err != nil {
		return 0, err
	}
	return int(gjson.GetBytes(raw, "length").Int()), nil
}

// LineForIndex derives the visual line from the caret rectangle at the
// index, since wrapped lines have no DOM representation.
func (s *Surface) LineForIndex(ctx context.Context, index int) (int, error) {
	raw, err := s.eval(ctx, `(sel, index) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		`+locateJS+`
		const range = domRange(el, index, index);
		if (!range) return null;
		const rects = range.getClientRects();
		const caretY = rects.length ? rects[0].y : range.getBoundingClientRect().y;
		const elTop = el.getBoundingClientRect().y;
		const lineHeight = parseFloat(getComputedStyle(el).lineHeight);
		if (!lineHeight || !isFinite(lineHeight)) return null;
		return { line: Math.max(0, Math.round((caretY - elTop) / lineHeight)) };
	}`, index)
	if err != nil {
		return 0, err
	}
	return int(gjson.GetBytes(raw, "line").Int()), nil
}

func (s *Surface) BoundsForLine(ctx context.Context, line int) (geometry.Rect, error) {
	raw, err := s.eval(ctx, `(sel, line) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const b = el.getBoundingClientRect();
		const lineHeight = parseFloat(getComputedStyle(el).lineHeight);
		if (!lineHeight || !isFinite(lineHeight)) return null;
		if (line * lineHeight >= b.height) return null;
		return { x: b.x, y: b.y + line * lineHeight, w: b.width, h: lineHeight };
	}`, line)
	if err != nil {
		return geometry.Rect{}, err
	}
	return rectFromJSON(raw), nil
}

func (s *Surface) SetSelection(ctx context.Context, r textindex.Range) error {
	raw, err := s.eval(ctx, `(sel, start, end) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		`+locateJS+`
		const range = domRange(el, start, end);
		if (!range) return null;
		el.focus();
		const selection = window.getSelection();
		selection.removeAllRanges();
		selection.addRange(range);
		return { ok: true };
	}`, r.Start, r.End)
	if err != nil {
		return err
	}
	if !gjson.GetBytes(raw, "ok").Bool() {
		return host.ErrUnavailable
	}
	return nil
}

func (s *Surface) ReadSelection(ctx context.Context) (string, error) {
	raw, err := s.eval(ctx, `() => {
		return { text: window.getSelection().toString() };
	}`)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "text").String(), nil
}

// InjectPaste sends the platform paste chord. The payload must already be on
// the system clipboard; the browser applies it over the current selection.
func (s *Surface) InjectPaste(ctx context.Context) error {
	return s.page.Context(ctx).KeyActions().Press(input.ControlLeft).Type(input.KeyV).Do()
}

func (s *Surface) ProbeLiveness(ctx context.Context) error {
	raw, err := s.eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		return { alive: el.isConnected };
	}`)
	if err != nil {
		if errors.Is(err, host.ErrUnavailable) {
			return fmt.Errorf("%w: element %q not found", host.ErrUnavailable, s.selector)
		}
		return err
	}
	if !gjson.GetBytes(raw, "alive").Bool() {
		return fmt.Errorf("%w: element %q detached", host.ErrUnavailable, s.selector)
	}
	return nil
}

func rectFromJSON(raw []byte) geometry.Rect {
	return rectFromResult(gjson.ParseBytes(raw))
}

func rectFromResult(r gjson.Result) geometry.Rect {
	return geometry.NewRect(
		r.Get("x").Float(),
		r.Get("y").Float(),
		r.Get("w").Float(),
		r.Get("h").Float(),
	)
}

// Role reports the element role assigned when the surface was produced by a
// child enumeration; top-level surfaces have none.
func (s *Surface) Role() string { return s.role }

var _ host.Surface = (*Surface)(nil)
