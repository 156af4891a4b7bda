package lineup

import (
	"encoding/csv"
	"strings"
)

// ParseError indicates the source text could not be understood as a
// schedule. It is fatal to the current source but not to the caller.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parsing schedule: " + e.Reason
}

// Column synonyms accepted in the header row, in order: start, end,
// artist name, stage. Clashfinder exports use start/end/name/location;
// other exports vary.
var headerSynonyms = [4][]string{
	{"start", "start time", "from"},
	{"end", "end time", "to", "until"},
	{"name", "artist", "act"},
	{"location", "stage", "venue", "area"},
}

// ParseSchedule converts raw tabular text into ordered schedule rows.
//
// The header row may appear anywhere before the data and may itself be
// commented out. Every following non-comment, non-blank line is treated as
// data; rows missing any of the four fields are dropped. The function is
// pure: it never touches the datastore or network.
func ParseSchedule(src string) ([]RawRow, error) {
	lines := strings.Split(src, "\n")

	headerIdx := -1
	var delim rune
	for i, line := range lines {
		content := stripComment(line)
		if content == "" {
			continue
		}
		d := detectDelimiter(content)
		cells := splitRow(content, d)
		if isHeader(cells) {
			headerIdx = i
			delim = d
			break
		}
	}
	if headerIdx < 0 {
		return nil, &ParseError{Reason: "header not found"}
	}

	var rows []RawRow
	for _, line := range lines[headerIdx+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isComment(trimmed) {
			continue
		}
		cells := splitRow(trimmed, delim)
		if len(cells) < 4 {
			continue
		}
		row := RawRow{
			StartRaw: strings.TrimSpace(cells[0]),
			EndRaw:   strings.TrimSpace(cells[1]),
			NameRaw:  strings.TrimSpace(cells[2]),
			Stage:    strings.TrimSpace(cells[3]),
		}
		if row.StartRaw == "" || row.EndRaw == "" || row.NameRaw == "" || row.Stage == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isComment reports whether a trimmed line is a comment.
func isComment(s string) bool {
	return strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//")
}

// stripComment trims a line and removes one leading comment prefix, so a
// commented-out header row is still recognizable.
func stripComment(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "#")
	return strings.TrimSpace(s)
}

// detectDelimiter picks tab when present, otherwise comma.
func detectDelimiter(line string) rune {
	if strings.ContainsRune(line, '\t') {
		return '\t'
	}
	return ','
}

// splitRow splits one line into cells, honoring CSV quoting for comma
// sources. Tab sources are split directly.
func splitRow(line string, delim rune) []string {
	if delim == '\t' {
		return strings.Split(line, "\t")
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return cells
}

// isHeader reports whether cells begin the expected column set.
func isHeader(cells []string) bool {
	if len(cells) < 4 {
		return false
	}
	for i, synonyms := range headerSynonyms {
		cell := strings.ToLower(strings.TrimSpace(cells[i]))
		if !matchesAny(cell, synonyms) {
			return false
		}
	}
	return true
}

func matchesAny(cell string, synonyms []string) bool {
	for _, s := range synonyms {
		if cell == s {
			return true
		}
	}
	return false
}
