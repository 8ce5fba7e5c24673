package textindex

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/rivo/uniseg"
)

// ErrUnconvertible is returned when a range cannot be mapped exactly between
// index spaces. Callers must abort the operation that needed the conversion;
// there is no safe approximation.
var ErrUnconvertible = errors.New("textindex: range not convertible")

// GraphemesToUTF16 converts a grapheme-cluster range into the UTF-16 code-unit
// range covering the same characters of text. Most clusters occupy one code
// unit; astral-plane characters and modifier emoji occupy two or more.
func GraphemesToUTF16(text string, r Range) (Range, error) {
	if !r.IsValid() {
		return Range{}, fmt.Errorf("%w: invalid range %s", ErrUnconvertible, r)
	}

	var out Range
	cluster := 0
	unit := 0
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		if cluster == r.Start {
			out.Start = unit
		}
		if cluster == r.End {
			out.End = unit
			return out, nil
		}
		unit += utf16Width(gr.Runes())
		cluster++
	}
	// Ranges may end exactly at the end of text.
	if cluster == r.Start {
		out.Start = unit
	} else if r.Start > cluster {
		return Range{}, fmt.Errorf("%w: start %d beyond %d clusters", ErrUnconvertible, r.Start, cluster)
	}
	if cluster == r.End {
		out.End = unit
		return out, nil
	}
	return Range{}, fmt.Errorf("%w: end %d beyond %d clusters", ErrUnconvertible, r.End, cluster)
}

// UTF16ToGraphemes converts a UTF-16 code-unit range back into grapheme
// clusters. A range that starts or ends in the middle of a cluster is not
// convertible: selecting half an emoji is never what the caller wants.
func UTF16ToGraphemes(text string, r Range) (Range, error) {
	if !r.IsValid() {
		return Range{}, fmt.Errorf("%w: invalid range %s", ErrUnconvertible, r)
	}

	var out Range
	startSet := false
	cluster := 0
	unit := 0
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		if unit == r.Start {
			out.Start = cluster
			startSet = true
		}
		if unit == r.End {
			if !startSet {
				return Range{}, fmt.Errorf("%w: start %d splits a cluster", ErrUnconvertible, r.Start)
			}
			out.End = cluster
			return out, nil
		}
		w := utf16Width(gr.Runes())
		if r.Start > unit && r.Start < unit+w {
			return Range{}, fmt.Errorf("%w: start %d splits a cluster", ErrUnconvertible, r.Start)
		}
		if r.End > unit && r.End < unit+w {
			return Range{}, fmt.Errorf("%w: end %d splits a cluster", ErrUnconvertible, r.End)
		}
		unit += w
		cluster++
	}
	if unit == r.Start {
		out.Start = cluster
		startSet = true
	}
	if unit == r.End && startSet {
		out.End = cluster
		return out, nil
	}
	return Range{}, fmt.Errorf("%w: range %s beyond %d code units", ErrUnconvertible, r, unit)
}

// UTF16Length returns the length of text in UTF-16 code units. Host text APIs
// report document length in this space, so bounds checks must use it rather
// than byte or rune counts.
func UTF16Length(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// GraphemeCount returns the number of grapheme clusters in text.
func GraphemeCount(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// SliceGraphemes returns the substring of text covered by a grapheme range.
func SliceGraphemes(text string, r Range) (string, error) {
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid range %s", ErrUnconvertible, r)
	}
	startByte, endByte := -1, -1
	cluster := 0
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		from, _ := gr.Positions()
		if cluster == r.Start {
			startByte = from
		}
		if cluster == r.End {
			endByte = from
		}
		cluster++
	}
	if cluster == r.Start {
		startByte = len(text)
	}
	if cluster == r.End {
		endByte = len(text)
	}
	if startByte < 0 || endByte < 0 {
		return "", fmt.Errorf("%w: range %s beyond %d clusters", ErrUnconvertible, r, cluster)
	}
	return text[startByte:endByte], nil
}

func utf16Width(runes []rune) int {
	w := 0
	for _, r := range runes {
		n := utf16.RuneLen(r)
		if n < 0 {
			// Unpaired surrogate in the source text still occupies one
			// code unit on the host side.
			n = 1
		}
		w += n
	}
	return w
}
