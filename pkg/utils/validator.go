package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds any single free-text field of a report
const MaxTextLength = 4000

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// SanitizeText removes control characters other than tab and newline and
// trims surrounding whitespace
func SanitizeText(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// ValidateLength rejects values longer than max runes
func ValidateLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%s exceeds %d characters (%d)", field, max, n)
	}
	return nil
}
