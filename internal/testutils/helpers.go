package testutils

import (
	"strings"
	"testing"
	"unicode"

	"github.com/aretw0/doorman/pkg/domain"
	"github.com/stretchr/testify/assert"
)

// StripSpace removes every whitespace rune so XML can be compared regardless
// of indentation.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// AssertXMLContains checks that the expected fragment appears in actual,
// ignoring whitespace on both sides.
func AssertXMLContains(t testing.TB, expected, actual string) bool {
	t.Helper()
	return assert.Contains(t, StripSpace(actual), StripSpace(expected))
}

// AssertXMLNotContains is the negation of AssertXMLContains.
func AssertXMLNotContains(t testing.TB, unexpected, actual string) bool {
	t.Helper()
	return assert.NotContains(t, StripSpace(actual), StripSpace(unexpected))
}

// HangUpXML is the markup that ends a call.
const HangUpXML = `<Pause length="1"></Pause><Hangup></Hangup>`

// Call returns a call fixture with the numbers used across tests.
func Call(id string) domain.Call {
	return domain.Call{ID: id, From: FromNumber, To: TwilioNumber}
}

const (
	FromNumber    = "415-555-1111"
	PrimaryNumber = "415-555-2222"
	TwilioNumber  = "415-555-3333"
)
