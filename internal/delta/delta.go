// Package delta models formatted host text as an ordered run list and applies
// corrections to it without disturbing attributes. This is the one rich-text
// representation the engine round-trips; anything it cannot parse falls back
// to plain-text replacement at the call site.
package delta

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMultiRunSpan reports a correction whose match straddles a run boundary.
// Merging attribute sets across runs can silently invent formatting the user
// never applied, so the caller must downgrade to plain-text replacement
// instead.
var ErrMultiRunSpan = errors.New("delta: correction spans multiple runs")

// DecodeError describes why a payload could not be parsed as a run list.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "delta: decode failed: " + e.Reason
}

// Run is one element of a delta: either a text insert or an embedded object
// (image, horizontal rule), with an optional attribute set. Exactly one of
// Insert and Embed is populated.
type Run struct {
	Insert     string
	Embed      map[string]any
	Attributes map[string]any
}

// IsEmbed reports whether the run is an embedded object rather than text.
func (r Run) IsEmbed() bool {
	return r.Embed != nil
}

// Delta is an ordered sequence of runs.
type Delta struct {
	Ops []Run
}

// PlainText concatenates the text runs. Embeds contribute nothing to this
// view, which keeps plain-text offsets aligned with what the host reports for
// the same content.
func (d Delta) PlainText() string {
	var out []byte
	for _, op := range d.Ops {
		out = append(out, op.Insert...)
	}
	return string(out)
}

// Parse decodes the host's array-of-ops JSON into a delta. Both a bare array
// and an object with an "ops" field are accepted.
func Parse(payload []byte) (Delta, error) {
	if !gjson.ValidBytes(payload) {
		return Delta{}, &DecodeError{Reason: "not valid JSON"}
	}
	root := gjson.ParseBytes(payload)
	ops := root
	if root.IsObject() {
		ops = root.Get("ops")
		if !ops.Exists() {
			return Delta{}, &DecodeError{Reason: `object payload has no "ops" field`}
		}
	}
	if !ops.IsArray() {
		return Delta{}, &DecodeError{Reason: "ops is not an array"}
	}

	var d Delta
	var parseErr error
	ops.ForEach(func(_, op gjson.Result) bool {
		if !op.IsObject() {
			parseErr = &DecodeError{Reason: "op is not an object"}
			return false
		}
		ins := op.Get("insert")
		if !ins.Exists() {
			parseErr = &DecodeError{Reason: `op has no "insert" field`}
			return false
		}
		run := Run{}
		switch {
		case ins.Type == gjson.String:
			run.Insert = ins.String()
		case ins.IsObject():
			run.Embed = ins.Value().(map[string]any)
		default:
			parseErr = &DecodeError{Reason: "insert is neither string nor object"}
			return false
		}
		if attrs := op.Get("attributes"); attrs.Exists() {
			m, ok := attrs.Value().(map[string]any)
			if !ok {
				parseErr = &DecodeError{Reason: "attributes is not an object"}
				return false
			}
			run.Attributes = m
		}
		d.Ops = append(d.Ops, run)
		return true
	})
	if parseErr != nil {
		return Delta{}, parseErr
	}
	return d, nil
}

// Serialize encodes the delta back into the bare array-of-ops form. Parse of
// the result reproduces the delta exactly.
func Serialize(d Delta) ([]byte, error) {
	out := []byte("[]")
	var err error
	for _, run := range d.Ops {
		op := map[string]any{}
		if run.IsEmbed() {
			op["insert"] = run.Embed
		} else {
			op["insert"] = run.Insert
		}
		if run.Attributes != nil {
			op["attributes"] = run.Attributes
		}
		out, err = sjson.SetBytes(out, "-1", op)
		if err != nil {
			return nil, fmt.Errorf("delta: serialize op: %w", err)
		}
	}
	return out, nil
}

// ApplyCorrection returns a copy of the delta with errorText at byte offset
// `at` of the plain-text view replaced by suggestion. Attributes of the
// containing run are untouched. A match that is not entirely inside one text
// run yields ErrMultiRunSpan.
func ApplyCorrection(d Delta, at int, errorText, suggestion string) (Delta, error) {
	if errorText == "" {
		return Delta{}, fmt.Errorf("delta: empty error text")
	}
	end := at + len(errorText)
	plain := d.PlainText()
	if at < 0 || end > len(plain) {
		return Delta{}, fmt.Errorf("delta: offset %d+%d beyond text length %d", at, len(errorText), len(plain))
	}
	if plain[at:end] != errorText {
		return Delta{}, fmt.Errorf("delta: text at offset %d is %q, expected %q", at, plain[at:end], errorText)
	}

	offset := 0
	for i, run := range d.Ops {
		if run.IsEmbed() {
			continue
		}
		runEnd := offset + len(run.Insert)
		if at >= offset && at < runEnd {
			if end > runEnd {
				return Delta{}, ErrMultiRunSpan
			}
			local := at - offset
			out := Delta{Ops: make([]Run, len(d.Ops))}
			copy(out.Ops, d.Ops)
			out.Ops[i].Insert = run.Insert[:local] + suggestion + run.Insert[local+len(errorText):]
			return out, nil
		}
		offset = runEnd
	}
	return Delta{}, fmt.Errorf("delta: offset %d not inside any text run", at)
}
