package lineup

import "strings"

// collabMarkers are whitespace-bounded tokens that join multiple artists
// sharing one slot. All of them resolve to ModeB2B.
var collabMarkers = map[string]bool{
	"b2b":    true,
	"b3b":    true,
	"f2f":    true,
	"vs":     true,
	"vs.":    true,
	"versus": true,
	"meet":   true,
	"meets":  true,
	"feat":   true,
	"feat.":  true,
	"ft":     true,
	"ft.":    true,
	"w/":     true,
}

// presentsMarkers introduce a show name rather than a second artist.
var presentsMarkers = map[string]bool{
	"presents": true,
	"pres":     true,
	"pres.":    true,
}

// SplitResult is the outcome of collaboration detection on one raw name.
type SplitResult struct {
	// Names holds one cleaned artist name per performer, in source order.
	Names []string
	Mode  PerformanceMode
	// CustomName is the cleaned combined label, set whenever the raw name
	// encoded more than a plain artist name.
	CustomName string
}

// Splitter expands raw combined names into per-artist entries. The
// ampersand allow-list protects band names like "Simon & Garfunkel" from
// being split.
type Splitter struct {
	allow map[string]bool
}

// NewSplitter creates a splitter with the given ampersand allow-list.
// Matching is exact and case-insensitive on the cleaned name.
func NewSplitter(allowList []string) *Splitter {
	allow := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allow[strings.ToLower(CleanName(name))] = true
	}
	return &Splitter{allow: allow}
}

// Split decides whether raw encodes one artist or several.
//
// Priority: a presents marker wins and never splits; then explicit
// collaboration markers; then an unlisted ampersand join. A string
// consisting only of marker tokens is treated as one artist name.
func (sp *Splitter) Split(raw string) SplitResult {
	cleaned := CleanName(raw)
	tokens := strings.Fields(cleaned)

	if left, ok := splitAtMarker(tokens, presentsMarkers); ok {
		name := CleanName(strings.Join(left, " "))
		if name != "" {
			return SplitResult{
				Names:      []string{name},
				Mode:       ModePresents,
				CustomName: cleaned,
			}
		}
	}

	if segments := splitAllMarkers(tokens, collabMarkers); len(segments) >= 2 {
		return SplitResult{
			Names:      segments,
			Mode:       ModeB2B,
			CustomName: cleaned,
		}
	}

	if !sp.allow[strings.ToLower(cleaned)] {
		if segments := splitAllMarkers(tokens, map[string]bool{"&": true}); len(segments) >= 2 {
			return SplitResult{
				Names:      segments,
				Mode:       ModeB2B,
				CustomName: cleaned,
			}
		}
	}

	// Single artist. Report a residual marker for observability without
	// splitting (covers degenerate inputs like "B2B B2B").
	mode := ModeNone
	for _, tok := range tokens {
		if collabMarkers[strings.ToLower(tok)] {
			mode = ModeB2B
			break
		}
	}
	if hasInteriorToken(tokens, presentsMarkers) {
		mode = ModePresents
	}
	return SplitResult{Names: []string{cleaned}, Mode: mode}
}

// splitAtMarker splits tokens at the first marker occurrence that has
// content on its left. Returns the left side and whether a marker was found.
func splitAtMarker(tokens []string, markers map[string]bool) ([]string, bool) {
	for i, tok := range tokens {
		if markers[strings.ToLower(tok)] && i > 0 {
			return tokens[:i], true
		}
	}
	return nil, false
}

// splitAllMarkers splits tokens on every marker occurrence and returns the
// cleaned non-empty segments. Fewer than two segments means the input was
// not a genuine collaboration (for example a name that is all markers).
func splitAllMarkers(tokens []string, markers map[string]bool) []string {
	var segments []string
	var current []string
	flush := func() {
		if name := CleanName(strings.Join(current, " ")); name != "" {
			segments = append(segments, name)
		}
		current = current[:0]
	}
	sawMarker := false
	for _, tok := range tokens {
		if markers[strings.ToLower(tok)] {
			sawMarker = true
			flush()
			continue
		}
		current = append(current, tok)
	}
	flush()
	if !sawMarker {
		return nil
	}
	return segments
}

// hasInteriorToken reports whether any token past the first matches.
func hasInteriorToken(tokens []string, markers map[string]bool) bool {
	for i, tok := range tokens {
		if i > 0 && markers[strings.ToLower(tok)] {
			return true
		}
	}
	return false
}
