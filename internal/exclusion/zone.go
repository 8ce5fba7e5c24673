// Package exclusion identifies sub-ranges of extracted text that must never
// be treated as correctable prose: mentions, links, code, quotes. Detection
// is best-effort by design; a failed query degrades to fewer zones rather
// than aborting, because occasionally correcting inside a zone beats losing
// grammar checking entirely on a query error.
package exclusion

import (
	"sort"

	"textwarden/internal/analysis"
	"textwarden/internal/textindex"
)

// Kind classifies why a range is excluded.
type Kind string

const (
	KindMention Kind = "mention"
	KindLink    Kind = "link"
	KindCode    Kind = "code"
	KindQuote   Kind = "quote"
)

// Zone is one excluded range, in UTF-16 code units of the extracted text.
type Zone struct {
	Range textindex.Range
	Kind  Kind
}

// Merge coalesces overlapping or adjacent zones of the same kind. A zone
// straddling a scan-chunk boundary arrives as two pieces and must leave as
// one.
func Merge(zones []Zone) []Zone {
	if len(zones) < 2 {
		return zones
	}
	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Range.Start != sorted[j].Range.Start {
			return sorted[i].Range.Start < sorted[j].Range.Start
		}
		return sorted[i].Kind < sorted[j].Kind
	})

	out := sorted[:1]
	for _, z := range sorted[1:] {
		last := &out[len(out)-1]
		if z.Kind == last.Kind && (z.Range.Overlaps(last.Range) || z.Range.Adjacent(last.Range)) {
			last.Range = last.Range.Union(z.Range)
			continue
		}
		out = append(out, z)
	}
	return out
}

// FilterSpans drops analysis spans that overlap any zone. Span ranges are in
// grapheme clusters; a span that cannot be converted into code-unit space is
// dropped too, since it could never be resolved or replaced safely.
func FilterSpans(text string, spans []analysis.Span, zones []Zone) []analysis.Span {
	if len(zones) == 0 {
		return spans
	}
	kept := make([]analysis.Span, 0, len(spans))
	for _, span := range spans {
		units, err := textindex.GraphemesToUTF16(text, span.Range)
		if err != nil {
			continue
		}
		excluded := false
		for _, z := range zones {
			if units.Overlaps(z.Range) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, span)
		}
	}
	return kept
}
