// Package namematch compares human names across the Luminar ledger and the
// remote SGE system. The two systems share no identifiers, so class, subject
// and student discovery all reduce to comparing free-typed names. Every
// function here is pure.
package namematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// subjectAliases maps normalized local subject names to the normalized name
// the remote system uses for the same subject. Both sides of each entry must
// already be in Normalize form.
var subjectAliases = map[string]string{
	"lingua portuguesa": "portugues",
	"educacao fisica":   "ed fisica",
	"ensino religioso":  "religiao",
	"arte":              "artes",
	"lingua inglesa":    "ingles",
}

// Normalize strips diacritics, lowercases, trims and collapses whitespace.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Equal compares the normalized forms of both names.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// PartialMatch accepts two names when their first and last tokens agree after
// normalization. This tolerates dropped middle names and abbreviations between
// the two systems but rejects reordered names.
func PartialMatch(a, b string) bool {
	ta := strings.Fields(Normalize(a))
	tb := strings.Fields(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	return ta[0] == tb[0] && ta[len(ta)-1] == tb[len(tb)-1]
}

// ResolveAlias returns the remote-side normalized name for a local subject
// when an alias is registered, and "" otherwise.
func ResolveAlias(subjectName string) string {
	return subjectAliases[Normalize(subjectName)]
}
