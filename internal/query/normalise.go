package query

import "strings"

// dashGlyphs are typographic dashes that phone keyboards substitute for "-".
// Each becomes a double hyphen so the collapsing below treats them like any
// other run.
var dashGlyphs = strings.NewReplacer(
	"—", "--", // em dash
	"–", "--", // en dash
)

// Normalise canonicalises dash glyphs, collapses runs of hyphens to a single
// hyphen and trims surrounding whitespace. It never fails and is idempotent.
func Normalise(line string) string {
	line = dashGlyphs.Replace(line)

	// Longest run first, repeated until no run of two or more remains.
	for strings.Contains(line, "--") {
		for n := 4; n > 1; n-- {
			line = strings.ReplaceAll(line, strings.Repeat("-", n), "-")
		}
	}

	return strings.TrimSpace(line)
}
