package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/pkg/studentagent"
)

type pluginAgent struct {
	role string
}

func (a *pluginAgent) GetAction(observation []float64, participantID string) ([]float64, error) {
	if participantID == "panic" {
		panic("bad participant")
	}
	if a.role == "predator" {
		return []float64{0, 0, 1, 0, 0}, nil
	}
	return []float64{0, 1, 0, 0, 0}, nil
}

type roleName string

func TestAdaptConstructor_Shapes(t *testing.T) {
	withError := func(role string) (*pluginAgent, error) { return &pluginAgent{role: role}, nil }
	plain := func(role string) *pluginAgent { return &pluginAgent{role: role} }
	named := func(role roleName) (studentagent.Agent, error) { return &pluginAgent{role: string(role)}, nil }
	var ctor studentagent.Constructor = func(role string) (studentagent.Agent, error) {
		return &pluginAgent{role: role}, nil
	}

	tests := []struct {
		name string
		sym  any
	}{
		{"returns T and error", withError},
		{"returns T", plain},
		{"pointer to function", &plain},
		{"named string parameter", named},
		{"studentagent.Constructor", ctor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := AdaptConstructor(tt.sym)
			require.NoError(t, err)

			a, err := factory(context.Background(), agent.RolePredator)
			require.NoError(t, err)
			action, err := a.GetAction(context.Background(), nil, "adversary_0")
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0, 1, 0, 0}, action)
		})
	}
}

func TestAdaptConstructor_RejectsWrongShapes(t *testing.T) {
	var nilFunc func(string) *pluginAgent

	tests := []struct {
		name     string
		sym      any
		contains string
	}{
		{"not a function", 42, "want a function"},
		{"nil", nil, "want a function"},
		{"nil function", nilFunc, "is nil"},
		{"no parameters", func() *pluginAgent { return nil }, "single string role"},
		{"int parameter", func(int) *pluginAgent { return nil }, "single string role"},
		{"two parameters", func(string, string) *pluginAgent { return nil }, "single string role"},
		{"variadic", func(...string) *pluginAgent { return nil }, "single string role"},
		{"no results", func(string) {}, "must return T or (T, error)"},
		{"second result not error", func(string) (*pluginAgent, int) { return nil, 0 }, "must return T or (T, error)"},
		{"no GetAction", func(string) int { return 0 }, "does not have method GetAction"},
		{"wrong GetAction", func(string) agent.Agent { return nil }, "does not have method GetAction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AdaptConstructor(tt.sym)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestAdaptConstructor_ConstructionFailures(t *testing.T) {
	ctx := context.Background()

	factory, err := AdaptConstructor(func(role string) (*pluginAgent, error) {
		return nil, errors.New("no such role")
	})
	require.NoError(t, err)
	_, err = factory(ctx, agent.RolePrey)
	assert.EqualError(t, err, "no such role")

	factory, err = AdaptConstructor(func(role string) *pluginAgent { return nil })
	require.NoError(t, err)
	_, err = factory(ctx, agent.RolePrey)
	assert.EqualError(t, err, `StudentAgent("prey") returned nil`)

	factory, err = AdaptConstructor(func(role string) studentagent.Agent {
		panic("not ready")
	})
	require.NoError(t, err)
	_, err = factory(ctx, agent.RolePrey)
	assert.EqualError(t, err, `panic in StudentAgent("prey"): not ready`)
}

func TestInProcessAgent_GetAction(t *testing.T) {
	factory, err := AdaptConstructor(func(role string) *pluginAgent { return &pluginAgent{role: role} })
	require.NoError(t, err)
	a, err := factory(context.Background(), agent.RolePrey)
	require.NoError(t, err)

	_, err = a.GetAction(context.Background(), nil, "panic")
	assert.EqualError(t, err, "panic in GetAction: bad participant")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.GetAction(ctx, nil, "agent_0")
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, agent.Release(a))
}
