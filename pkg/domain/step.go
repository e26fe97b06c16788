package domain

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Params holds the named arguments of a step.
// Fields use "mapstructure" tags so loosely typed payloads (numbers for digits,
// YAML scalars) decode into strings.
type Params struct {
	Value    string `json:"value,omitempty" mapstructure:"value"`
	To       string `json:"to,omitempty" mapstructure:"to"`
	Voice    string `json:"voice,omitempty" mapstructure:"voice"`
	Language string `json:"language,omitempty" mapstructure:"language"`
}

// Step is one instruction of a call script.
//
// Branches is only populated for gatherDigits and maps digit sequences (plus
// DefaultBranch) to the script taken when that sequence is entered.
// A Step is never mutated after it is decoded.
type Step struct {
	Command  Command
	Params   Params
	Branches map[string]Script
}

// Script is an ordered sequence of steps. It may be empty.
type Script []Step

// Say, Play and the other constructors below build steps in code, mostly for
// tests and embedded scripts.

func Say(text string) Step {
	return Step{Command: CommandSay, Params: Params{Value: text}}
}

func Play(uri string) Step {
	return Step{Command: CommandPlay, Params: Params{Value: uri}}
}

func SendDigits(digits string) Step {
	return Step{Command: CommandSendDigits, Params: Params{Value: digits}}
}

func SendSms(to, message string) Step {
	return Step{Command: CommandSendSms, Params: Params{To: to, Value: message}}
}

func ForwardCall(number string) Step {
	return Step{Command: CommandForwardCall, Params: Params{Value: number}}
}

func HangUp() Step {
	return Step{Command: CommandHangUp}
}

// GatherDigits builds a gatherDigits step. branches should contain DefaultBranch.
func GatherDigits(branches map[string]Script) Step {
	return Step{Command: CommandGatherDigits, Branches: branches}
}

// MarshalJSON encodes the step as a [command, params] pair.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Command == CommandGatherDigits {
		branches := s.Branches
		if branches == nil {
			branches = map[string]Script{}
		}
		return json.Marshal([]any{s.Command, branches})
	}
	return json.Marshal([]any{s.Command, s.Params})
}

// UnmarshalJSON decodes a [command, params] pair. The params object is optional.
func (s *Step) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("step must be a [command, params] pair: %w", err)
	}
	if len(pair) == 0 || len(pair) > 2 {
		return fmt.Errorf("step must be a [command, params] pair, got %d elements", len(pair))
	}

	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return fmt.Errorf("step command must be a string: %w", err)
	}
	step := Step{Command: Command(name)}

	if len(pair) == 2 && string(pair[1]) != "null" {
		if step.Command == CommandGatherDigits {
			if err := json.Unmarshal(pair[1], &step.Branches); err != nil {
				return fmt.Errorf("gatherDigits branches: %w", err)
			}
		} else {
			var raw map[string]any
			if err := json.Unmarshal(pair[1], &raw); err != nil {
				return fmt.Errorf("%s params: %w", name, err)
			}
			if err := decodeParams(raw, &step.Params); err != nil {
				return fmt.Errorf("%s params: %w", name, err)
			}
		}
	}

	*s = step
	return nil
}

// UnmarshalYAML decodes a [command, params] sequence node.
// Branch keys are read as raw scalars so "123" and 123 both become "123".
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 || len(node.Content) > 2 {
		return fmt.Errorf("line %d: step must be a [command, params] pair", node.Line)
	}

	var name string
	if err := node.Content[0].Decode(&name); err != nil {
		return fmt.Errorf("line %d: step command must be a string: %w", node.Line, err)
	}
	step := Step{Command: Command(name)}

	// A null params node ([hangUp, ~]) reads as absent params, like JSON null.
	if len(node.Content) == 2 && !isNull(node.Content[1]) {
		params := node.Content[1]
		if params.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: %s params must be a mapping", params.Line, name)
		}

		if step.Command == CommandGatherDigits {
			step.Branches = make(map[string]Script, len(params.Content)/2)
			for i := 0; i+1 < len(params.Content); i += 2 {
				var branch Script
				if err := params.Content[i+1].Decode(&branch); err != nil {
					return err
				}
				step.Branches[params.Content[i].Value] = branch
			}
		} else {
			var raw map[string]any
			if err := params.Decode(&raw); err != nil {
				return fmt.Errorf("line %d: %s params: %w", params.Line, name, err)
			}
			if err := decodeParams(raw, &step.Params); err != nil {
				return fmt.Errorf("line %d: %s params: %w", params.Line, name, err)
			}
		}
	}

	*s = step
	return nil
}

// MarshalYAML encodes the step as a [command, params] pair.
func (s Step) MarshalYAML() (any, error) {
	if s.Command == CommandGatherDigits {
		return []any{string(s.Command), s.Branches}, nil
	}
	params := map[string]string{}
	if s.Params.Value != "" {
		params["value"] = s.Params.Value
	}
	if s.Params.To != "" {
		params["to"] = s.Params.To
	}
	if s.Params.Voice != "" {
		params["voice"] = s.Params.Voice
	}
	if s.Params.Language != "" {
		params["language"] = s.Params.Language
	}
	return []any{string(s.Command), params}, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func decodeParams(raw map[string]any, out *Params) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// ParseScript decodes a JSON script payload.
func ParseScript(data []byte) (Script, error) {
	var script Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	if script == nil {
		script = Script{}
	}
	return script, nil
}
