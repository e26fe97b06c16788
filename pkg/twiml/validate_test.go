package twiml_test

import (
	"errors"
	"testing"

	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/twiml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	script := domain.Script{
		domain.Say("Welcome."),
		domain.GatherDigits(map[string]domain.Script{
			"1":                  {domain.ForwardCall("415-555-2222")},
			domain.DefaultBranch: {domain.HangUp()},
		}),
	}
	assert.NoError(t, twiml.Validate(script))
	assert.NoError(t, twiml.Validate(domain.Script{}))
}

func TestValidate_ReportsNestedFailures(t *testing.T) {
	script := domain.Script{
		domain.Say(""),
		domain.GatherDigits(map[string]domain.Script{
			"1":                  {domain.Say("ok"), {Command: "record"}},
			domain.DefaultBranch: {domain.SendSms("", "hi")},
		}),
		domain.GatherDigits(map[string]domain.Script{"2": nil}),
	}

	err := twiml.Validate(script)
	require.Error(t, err)

	var paths []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var stepErr *twiml.StepError
		require.True(t, errors.As(e, &stepErr))
		paths = append(paths, stepErr.Path)
	}
	assert.Equal(t, []string{
		"0",
		"1/gatherDigits[1]/1",
		"1/gatherDigits[default]/0",
		"2",
	}, paths)
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)
}
