package exclusion

import (
	"context"
	"strings"
	"unicode/utf16"

	"go.uber.org/zap"

	"textwarden/internal/config"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// chunkLadder is the fixed shrink sequence for attribute queries. Hosts'
// range-query APIs fail for large ranges near text end; shrinking the chunk
// keeps the scan alive instead of failing it wholesale.
var chunkLadder = []int{100, 50, 25, 10, 5, 1}

// linkRoles are child-element roles exposing hyperlinks. Links often carry no
// styling attribute at all, so the attribute scan cannot see them.
var linkRoles = map[string]bool{
	"link":   true,
	"AXLink": true,
}

// Detector finds exclusion zones in one host surface.
type Detector struct {
	profile config.HostProfile
	log     *zap.Logger
}

// NewDetector creates a detector for a host profile.
func NewDetector(profile config.HostProfile, log *zap.Logger) *Detector {
	return &Detector{profile: profile, log: log}
}

// Detect runs both techniques over text as currently shown in surface and
// returns the merged zones. Ranges are in UTF-16 code units of text.
func (d *Detector) Detect(ctx context.Context, text string, surface host.Surface) []Zone {
	zones := d.attributeScan(ctx, text, surface)
	zones = append(zones, d.childScan(ctx, text, surface)...)
	return Merge(zones)
}

// attributeScan queries the profile's exclusion attribute over successive
// chunks, shrinking the chunk size through the ladder whenever a query
// fails. A success resets the ladder so the scan recovers its full chunk
// size past a hostile region. Ladder exhaustion skips one character and
// resumes; the scan itself never fails.
func (d *Detector) attributeScan(ctx context.Context, text string, surface host.Surface) []Zone {
	length := textindex.UTF16Length(text)
	attr := d.profile.ExclusionAttribute

	var zones []Zone
	ladder := 0
	pos := 0
	for pos < length {
		size := chunkLadder[ladder]
		if remaining := length - pos; size > remaining {
			size = remaining
		}
		chunk := textindex.NewRange(pos, pos+size)

		value, err := surface.QueryAttribute(ctx, attr, chunk)
		if err != nil {
			if ladder+1 < len(chunkLadder) {
				ladder++
				continue
			}
			// Even single-character queries fail here; give up on this
			// character only.
			d.log.Debug("attribute query failed at minimum chunk",
				zap.Int("pos", pos), zap.Error(err))
			pos++
			continue
		}
		if kind, ok := classifyAttribute(value); ok {
			zones = append(zones, Zone{Range: chunk, Kind: kind})
		}
		pos += size
		ladder = 0
	}
	return zones
}

// childScan walks the element's children looking for zone kinds that exist
// only as distinct child elements, and maps their text back into the main
// range. Any failure yields fewer zones, never an error.
func (d *Detector) childScan(ctx context.Context, text string, surface host.Surface) []Zone {
	children, err := surface.QueryChildren(ctx)
	if err != nil {
		d.log.Debug("child scan unavailable", zap.Error(err))
		return nil
	}

	var zones []Zone
	searchFrom := 0
	for _, child := range children {
		if !linkRoles[child.Role] {
			continue
		}
		childLen, err := child.Surface.TextLength(ctx)
		if err != nil || childLen == 0 {
			continue
		}
		childText, err := child.Surface.QueryText(ctx, textindex.NewRange(0, childLen))
		if err != nil || childText == "" {
			continue
		}
		start := utf16Index(text, childText, searchFrom)
		if start < 0 {
			// Child text not present in the extracted range (collapsed
			// preview, truncated link). Nothing safe to exclude.
			continue
		}
		zone := textindex.NewRange(start, start+textindex.UTF16Length(childText))
		zones = append(zones, Zone{Range: zone, Kind: KindLink})
		searchFrom = zone.End
	}
	return zones
}

// classifyAttribute maps a styling attribute value onto a zone kind. An empty
// value is unstyled prose. Hosts encode the styling differently, but mention
// and quote styling is distinguishable from the code/pre background most of
// them share.
func classifyAttribute(value string) (Kind, bool) {
	switch {
	case value == "":
		return "", false
	case strings.Contains(value, "mention"):
		return KindMention, true
	case strings.Contains(value, "quote"):
		return KindQuote, true
	default:
		return KindCode, true
	}
}

// utf16Index finds needle in haystack at or after a UTF-16 offset, returning
// the match's UTF-16 offset or -1.
func utf16Index(haystack, needle string, fromUnit int) int {
	units := utf16.Encode([]rune(haystack))
	if fromUnit > len(units) {
		return -1
	}
	tail := string(utf16.Decode(units[fromUnit:]))
	byteIdx := strings.Index(tail, needle)
	if byteIdx < 0 {
		return -1
	}
	return fromUnit + textindex.UTF16Length(tail[:byteIdx])
}
