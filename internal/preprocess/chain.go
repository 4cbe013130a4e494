package preprocess

import (
	"fmt"

	"booksync/internal/services"
)

// Stage transforms one unit of text. Returning "" drops the unit.
type Stage interface {
	Name() string
	Apply(text string) (string, error)
}

type funcStage struct {
	name string
	fn   func(string) (string, error)
}

func (s funcStage) Name() string                      { return s.name }
func (s funcStage) Apply(text string) (string, error) { return s.fn(text) }

// Func adapts a plain function into a named Stage.
func Func(name string, fn func(string) (string, error)) Stage {
	return funcStage{name: name, fn: fn}
}

// Chain applies stages in order.
type Chain []Stage

// Apply folds text through every stage. It stops at the first stage that
// drops the unit, and aborts with an ErrStage error naming the stage that
// failed.
func (c Chain) Apply(text string) (string, error) {
	for i, stage := range c {
		out, err := stage.Apply(text)
		if err != nil {
			return "", services.Wrap(services.ErrStage, "preprocess", fmt.Sprintf("stage %d (%s)", i, stage.Name()), "apply failed", err)
		}
		if out == "" {
			return "", nil
		}
		text = out
	}
	return text, nil
}

// Names lists the stage names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, stage := range c {
		names[i] = stage.Name()
	}
	return names
}
