package twiml

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/doorman/pkg/domain"
)

// StepError locates a failing step inside a script tree.
// Path reads like "2/gatherDigits[123]/0".
type StepError struct {
	Path string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Validate renders every step of script, including every gatherDigits branch,
// into a scratch builder and returns all failures joined.
func Validate(script domain.Script) error {
	var errs []error
	validate(NewBuilder("validate", "validate"), script, "", &errs)
	return errors.Join(errs...)
}

func validate(b *Builder, script domain.Script, prefix string, errs *[]error) {
	for i, step := range script {
		path := fmt.Sprintf("%s%d", prefix, i)
		if _, err := b.Apply(step); err != nil {
			*errs = append(*errs, &StepError{Path: path, Err: err})
		}
		b.Reset()

		if step.Command != domain.CommandGatherDigits {
			continue
		}
		keys := make([]string, 0, len(step.Branches))
		for key := range step.Branches {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			validate(b, step.Branches[key], fmt.Sprintf("%s/%s[%s]/", path, step.Command, key), errs)
		}
	}
}
