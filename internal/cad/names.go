package cad

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UpperName trims and upper-cases a block, layer or attribute name with full
// Unicode case mapping, so "fenêtre" and "FENÊTRE" compare equal.
// A Caser is stateful, hence one per call.
func UpperName(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// FoldName returns a caseless key for ordering and comparison.
func FoldName(s string) string {
	return cases.Fold().String(s)
}

// ContainsAny reports the first keyword contained in the upper-cased name.
func ContainsAny(upperName string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(upperName, kw) {
			return kw, true
		}
	}
	return "", false
}
