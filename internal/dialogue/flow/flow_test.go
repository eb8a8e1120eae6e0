package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct {
	ran []string
}

func record(name string, err error) Step[*trace] {
	return NewStep(name, func(_ context.Context, t *trace) error {
		t.ran = append(t.ran, name)
		return err
	})
}

func TestRunAllSteps(t *testing.T) {
	e := NewEngine(Flow[*trace]{Name: "turn", Steps: []Step[*trace]{record("a", nil), record("b", nil)}})

	tr := &trace{}
	halted, err := e.Run(context.Background(), "turn", tr)
	require.NoError(t, err)
	assert.Empty(t, halted)
	assert.Equal(t, []string{"a", "b"}, tr.ran)
}

func TestRunHalts(t *testing.T) {
	e := NewEngine(Flow[*trace]{Name: "turn", Steps: []Step[*trace]{
		record("a", nil), record("b", Halt), record("c", nil),
	}})

	tr := &trace{}
	halted, err := e.Run(context.Background(), "turn", tr)
	require.NoError(t, err)
	assert.Equal(t, "b", halted)
	assert.Equal(t, []string{"a", "b"}, tr.ran)
}

func TestRunWrapsStepError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(Flow[*trace]{Name: "turn", Steps: []Step[*trace]{record("a", boom), record("b", nil)}})

	_, err := e.Run(context.Background(), "turn", &trace{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a step failed")
}

func TestRunUnknownFlow(t *testing.T) {
	e := NewEngine[*trace]()
	_, err := e.Run(context.Background(), "missing", &trace{})
	assert.Error(t, err)
}
