package provider

import (
	"regexp"
)

var (
	e164RE = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	nonDig = regexp.MustCompile(`\D`)
	nanpRE = regexp.MustCompile(`^1?(\d{3})(\d{3})(\d{4})$`)
)

// ValidatePhoneNumber reports whether s is an E.164 number (e.g. +14155550100).
func ValidatePhoneNumber(s string) bool {
	return e164RE.MatchString(s)
}

// FormatPhoneNumber renders NANP numbers as "(AAA) BBB-CCCC" and returns
// anything else unchanged.
func FormatPhoneNumber(s string) string {
	m := nanpRE.FindStringSubmatch(nonDig.ReplaceAllString(s, ""))
	if m == nil {
		return s
	}
	return "(" + m[1] + ") " + m[2] + "-" + m[3]
}
