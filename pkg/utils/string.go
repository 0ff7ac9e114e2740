package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// Fold applies NFKC, lower-cases, turns punctuation and symbols into spaces and
// collapses whitespace. Letters and digits of any script are kept.
func (s *StringHelper) Fold(str string) string {
	str = norm.NFKC.String(str)

	var b strings.Builder
	b.Grow(len(str))

	for _, r := range str {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsMark(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return s.NormalizeWhitespace(b.String())
}

// Tokens returns the folded words of str.
func (s *StringHelper) Tokens(str string) []string {
	return strings.Fields(s.Fold(str))
}

// TruncateString truncates str to maxLength runes, appending "..." when cut.
func (s *StringHelper) TruncateString(str string, maxLength int) string {
	runes := []rune(str)
	if len(runes) <= maxLength {
		return str
	}

	return string(runes[:maxLength]) + "..."
}
