// Package textutil provides the text folding used to match free-text
// identifiers from source spreadsheets (provider names, variable names,
// column labels) against canonical code tables. Source files mix accents,
// casing, and punctuation freely between publications, so all matching in
// the pipeline happens on folded text.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks: decompose, drop nonspacing marks,
// recompose.
var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Clean trims s and collapses internal whitespace runs to single spaces.
// Accents and case are preserved; this is the display form.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the matching form of s: cleaned, accents stripped, upper case.
// Two labels that differ only in accents, case, or spacing fold equal.
func Fold(s string) string {
	ascii, _, err := transform.String(stripAccents, Clean(s))
	if err != nil {
		// Transform failures only occur on invalid UTF-8; fall back to the
		// cleaned input so matching degrades instead of dropping data.
		ascii = Clean(s)
	}
	return strings.ToUpper(ascii)
}

// Slug converts s into an upper-case identifier of [A-Z0-9_], suitable as a
// code for an entity first seen in source data: fold, then map separator
// runes to underscores and drop everything else.
func Slug(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	prevUnderscore := true // also trims leading separators
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '_':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
