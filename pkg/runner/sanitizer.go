package runner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/doorman/pkg/domain"
)

// DefaultMaxDigits bounds the Digits parameter of a turn.
const DefaultMaxDigits = 64

var (
	ErrInputTooLarge = fmt.Errorf("%w: digits exceed maximum allowed size", domain.ErrInvalidInput)
	ErrInvalidUTF8   = fmt.Errorf("%w: digits contain invalid UTF-8 sequences", domain.ErrInvalidInput)
	ErrInvalidDigit  = fmt.Errorf("%w: digits must be 0-9, * or #", domain.ErrInvalidInput)
)

// SanitizeDigits cleans keypad input by enforcing a size limit (DefaultMaxDigits
// when limit <= 0), validating UTF-8, dropping whitespace and control characters,
// and checking the DTMF alphabet.
func SanitizeDigits(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxDigits
	}

	// Reject rather than truncate: a truncated sequence could match another branch.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: already clean.
	if isDTMF(input) {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			continue
		}
		if !isDigit(r) {
			return "", fmt.Errorf("%w: got %q", ErrInvalidDigit, r)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func isDTMF(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool {
	return (r >= '0' && r <= '9') || r == '*' || r == '#'
}
