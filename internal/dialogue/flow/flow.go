// Package flow runs named pipelines of steps over a shared per-run context.
package flow

import (
	"context"
	"errors"
	"fmt"
)

// Halt ends a run early without error: the step has produced the outcome.
var Halt = errors.New("flow halted")

type Step[C any] struct {
	Name    string
	Execute func(ctx context.Context, c C) error
}

func NewStep[C any](name string, execute func(ctx context.Context, c C) error) Step[C] {
	return Step[C]{Name: name, Execute: execute}
}

type Flow[C any] struct {
	Name  string
	Steps []Step[C]
}

type Engine[C any] struct {
	flows map[string]Flow[C]
}

func NewEngine[C any](flows ...Flow[C]) *Engine[C] {
	m := make(map[string]Flow[C], len(flows))
	for _, f := range flows {
		m[f.Name] = f
	}
	return &Engine[C]{flows: m}
}

// Run executes the named flow's steps in order and returns the name of the
// step that halted it, or "" when every step ran.
func (e *Engine[C]) Run(ctx context.Context, name string, c C) (string, error) {
	f, ok := e.flows[name]
	if !ok {
		return "", fmt.Errorf("unsupported flow: %v", name)
	}
	for _, step := range f.Steps {
		err := step.Execute(ctx, c)
		if errors.Is(err, Halt) {
			return step.Name, nil
		}
		if err != nil {
			return step.Name, fmt.Errorf("%s step failed, pipeline errored: %w", step.Name, err)
		}
	}
	return "", nil
}
