package lineup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, removes combining marks, and recomposes,
// turning "Motörhead" into "Motorhead".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonicalize normalizes an artist name for matching: diacritics stripped,
// whitespace collapsed, non-alphanumeric edges trimmed. Canonicalizing a
// canonical name yields itself.
func Canonicalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	out = strings.Join(strings.Fields(out), " ")
	return trimEdges(out)
}

// trimEdges removes leading and trailing runes that are neither letters
// nor digits, keeping interior punctuation intact.
func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// liveSuffixes are trailing qualifiers that describe the show, not the
// artist. They are stripped before any split or comparison.
var liveSuffixes = []string{"live", "a/v", "av set", "audio visual", "audiovisual", "dj set", "hybrid set"}

// CleanName canonicalizes and strips a trailing live/audio-visual qualifier.
// "Kiasmos (Live)" and "Kiasmos live" both clean to "Kiasmos".
func CleanName(s string) string {
	out := Canonicalize(s)
	lower := strings.ToLower(out)
	for _, suf := range liveSuffixes {
		// The closing paren is already gone after edge trimming.
		for _, pat := range []string{" " + suf, "(" + suf} {
			if strings.HasSuffix(lower, pat) {
				return trimEdges(strings.TrimSpace(out[:len(out)-len(pat)]))
			}
		}
	}
	return out
}
