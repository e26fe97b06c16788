package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/doorman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseScript_JSON(t *testing.T) {
	payload := `[
		["say", {"value": "Hello world."}],
		["sendDigits", {"value": 42}],
		["gatherDigits", {
			"123": [["say", {"value": "You entered 123."}]],
			"default": []
		}],
		["hangUp"]
	]`

	script, err := domain.ParseScript([]byte(payload))
	require.NoError(t, err)
	require.Len(t, script, 4)

	assert.Equal(t, domain.Say("Hello world."), script[0])
	assert.Equal(t, "42", script[1].Params.Value, "numeric digits decode as strings")

	gather := script[2]
	assert.Equal(t, domain.CommandGatherDigits, gather.Command)
	require.Contains(t, gather.Branches, "123")
	require.Contains(t, gather.Branches, domain.DefaultBranch)
	assert.Equal(t, domain.Script{domain.Say("You entered 123.")}, gather.Branches["123"])
	assert.Empty(t, gather.Branches[domain.DefaultBranch])

	assert.Equal(t, domain.HangUp(), script[3])
}

func TestParseScript_Empty(t *testing.T) {
	script, err := domain.ParseScript([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, script)
	assert.Empty(t, script)
}

func TestParseScript_KeepsUnknownCommands(t *testing.T) {
	script, err := domain.ParseScript([]byte(`[["record", {"value": "x"}]]`))
	require.NoError(t, err)
	require.Len(t, script, 1)
	assert.Equal(t, domain.Command("record"), script[0].Command)
	assert.False(t, script[0].Command.IsValid())
}

func TestParseScript_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"Not A List", `{"say": "hi"}`},
		{"Step Not A Pair", `["say"]`},
		{"Empty Pair", `[[]]`},
		{"Too Many Elements", `[["say", {}, {}]]`},
		{"Command Not String", `[[1, {}]]`},
		{"Params Not Object", `[["say", "hi"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseScript([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestStep_JSONRoundTrip(t *testing.T) {
	original := domain.Script{
		domain.SendSms("415-555-4444", "on my way"),
		domain.GatherDigits(map[string]domain.Script{
			"1":                  {domain.Play("/audio/welcome.mp3")},
			domain.DefaultBranch: {domain.ForwardCall("415-555-2222")},
		}),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := domain.ParseScript(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestStep_YAML(t *testing.T) {
	doc := `
- [say, {value: "Welcome.", voice: man}]
- - gatherDigits
  - 12:
      - [sendDigits, {value: 9}]
    345:
      - [play, {value: /tone.wav}]
    default:
      - [hangUp]
`
	var script domain.Script
	require.NoError(t, yaml.Unmarshal([]byte(doc), &script))
	require.Len(t, script, 2)

	assert.Equal(t, "Welcome.", script[0].Params.Value)
	assert.Equal(t, "man", script[0].Params.Voice)

	branches := script[1].Branches
	require.Len(t, branches, 3)
	assert.Equal(t, domain.Script{domain.SendDigits("9")}, branches["12"])
	assert.Equal(t, domain.Script{domain.Play("/tone.wav")}, branches["345"])
	assert.Equal(t, domain.Script{domain.HangUp()}, branches[domain.DefaultBranch])
}

func TestStep_NullParams(t *testing.T) {
	fromJSON, err := domain.ParseScript([]byte(`[["hangUp", null]]`))
	require.NoError(t, err)

	for _, doc := range []string{"- [hangUp, ~]", "- [hangUp, null]"} {
		var fromYAML domain.Script
		require.NoError(t, yaml.Unmarshal([]byte(doc), &fromYAML), doc)
		assert.Equal(t, fromJSON, fromYAML, doc)
	}
	assert.Equal(t, domain.Script{domain.HangUp()}, fromJSON)
}

func TestStep_YAMLRejectsScalarParams(t *testing.T) {
	var script domain.Script
	err := yaml.Unmarshal([]byte(`- [say, hello]`), &script)
	assert.ErrorContains(t, err, "params must be a mapping")
}

func TestStep_YAMLRejectsMapping(t *testing.T) {
	var script domain.Script
	err := yaml.Unmarshal([]byte(`- {say: hi}`), &script)
	assert.Error(t, err)
}

func TestCommand_IsValid(t *testing.T) {
	for _, c := range domain.Commands {
		assert.True(t, c.IsValid(), c)
	}
	assert.False(t, domain.Command("Say").IsValid())
	assert.False(t, domain.Command("").IsValid())
}
