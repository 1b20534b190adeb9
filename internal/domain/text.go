package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether substr occurs in s, ignoring case.
// An empty s never matches: blank cells behave like missing values.
func ContainsFold(s, substr string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(Fold(s), Fold(substr))
}

// ContainsAnyFold reports whether any non-empty keyword occurs in s, ignoring case.
func ContainsAnyFold(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	folded := Fold(s)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(folded, Fold(k)) {
			return true
		}
	}
	return false
}
