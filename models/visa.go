package models

import "strings"

// VisaCategory represents the immigration category an applicant is pursuing
type VisaCategory string

const (
	VisaEB1A   VisaCategory = "EB-1A"
	VisaEB1B   VisaCategory = "EB-1B"
	VisaEB2NIW VisaCategory = "EB-2 NIW"
	VisaO1A    VisaCategory = "O-1A"
	VisaO1B    VisaCategory = "O-1B"
	VisaH1B    VisaCategory = "H-1B"
)

// VisaCategories lists every supported category in display order
var VisaCategories = []VisaCategory{VisaEB1A, VisaEB1B, VisaEB2NIW, VisaO1A, VisaO1B, VisaH1B}

// Valid reports whether v is one of the supported categories
func (v VisaCategory) Valid() bool {
	for _, c := range VisaCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseVisaCategory accepts the canonical form as well as loose spellings
// such as "eb1a" or "EB2-NIW".
func ParseVisaCategory(s string) (VisaCategory, bool) {
	norm := normalizeVisa(s)
	for _, c := range VisaCategories {
		if normalizeVisa(string(c)) == norm {
			return c, true
		}
	}
	return "", false
}

func normalizeVisa(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer("-", "", " ", "", "_", "").Replace(s)
	return s
}
