package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	err := handler.Output(context.Background(), Turn{Number: 1, Document: "<Response></Response>", Paused: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Rendered: ### Turn 1")
	assert.Contains(t, out.String(), "<Response></Response>")
	assert.Contains(t, out.String(), "Waiting for digits")
}

func TestTextHandler_InputRetriesInvalidDigits(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader("12x\n 123 \n"), out)

	val, err := handler.Input(context.Background(), Turn{Paused: true})
	require.NoError(t, err)
	assert.Equal(t, "123", val)
	assert.Contains(t, out.String(), "Please try again")
}

func TestSummary(t *testing.T) {
	s := Summary(Turn{Number: 2, Digits: "42", Error: "boom"})
	assert.Contains(t, s, "### Turn 2 (digits `42`)")
	assert.Contains(t, s, "**Turn failed:** boom")
	assert.NotContains(t, s, "```xml")

	s = Summary(Turn{Number: 3, Document: "<Response/>", Completed: true})
	assert.Contains(t, s, "```xml\n<Response/>\n```")
	assert.Contains(t, s, "Call completed")
}

func TestJSONHandler_Input(t *testing.T) {
	handler := NewJSONHandler(strings.NewReader("\"12\"\n{\"digits\":\"34\"}\n56"), &bytes.Buffer{})
	ctx := context.Background()

	for _, want := range []string{"12", "34", "56"} {
		got, err := handler.Input(ctx, Turn{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := handler.Input(ctx, Turn{})
	assert.Error(t, err)
}

func TestParseDigits(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{`["1", "", "23"]`, []string{"1", "", "23"}},
		{"1, 2 ,3", []string{"1", "2", "3"}},
	}
	for _, tt := range tests {
		got, err := ParseDigits(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDigits(`[1, 2]`)
	assert.Error(t, err)
}
