package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/pkg/studentagent"
)

// ErrBoom is the error returned by the failing test agents.
var ErrBoom = errors.New("boom")

// ConstFactory builds agents that always return action.
func ConstFactory(action []float64) agent.Factory {
	return func(ctx context.Context, role agent.Role) (agent.Agent, error) {
		return agent.Func(func(context.Context, []float64, string) ([]float64, error) {
			return append([]float64(nil), action...), nil
		}), nil
	}
}

// ZeroFactory builds agents that always return five zeros.
func ZeroFactory() agent.Factory {
	return ConstFactory(make([]float64, 5))
}

// FailingInitFactory fails every construction with err.
func FailingInitFactory(err error) agent.Factory {
	return func(ctx context.Context, role agent.Role) (agent.Agent, error) {
		return nil, err
	}
}

// FailingActionFactory builds agents whose GetAction always fails with err.
func FailingActionFactory(err error) agent.Factory {
	return func(ctx context.Context, role agent.Role) (agent.Agent, error) {
		return agent.Func(func(context.Context, []float64, string) ([]float64, error) {
			return nil, err
		}), nil
	}
}

// NthInitFailingFactory succeeds for the first n constructions and fails
// with err afterwards.
func NthInitFailingFactory(n int, err error) agent.Factory {
	built := 0
	inner := ZeroFactory()
	return func(ctx context.Context, role agent.Role) (agent.Agent, error) {
		if built >= n {
			return nil, err
		}
		built++
		return inner(ctx, role)
	}
}

// StudentConstructors are the agents served by helper processes, keyed by
// the name passed in HelperEnv.
var StudentConstructors = map[string]studentagent.Constructor{
	"zero": func(role string) (studentagent.Agent, error) {
		return studentAgent(func([]float64, string) ([]float64, error) {
			return make([]float64, studentagent.ActionDim), nil
		}), nil
	},
	"role": func(role string) (studentagent.Agent, error) {
		// Predators push right, prey push left.
		action := []float64{0, 1, 0, 0, 0}
		if role == "predator" {
			action = []float64{0, 0, 1, 0, 0}
		}
		return studentAgent(func([]float64, string) ([]float64, error) {
			return action, nil
		}), nil
	},
	"failing": func(role string) (studentagent.Agent, error) {
		return studentAgent(func([]float64, string) ([]float64, error) {
			return nil, ErrBoom
		}), nil
	},
	"init-failing": func(role string) (studentagent.Agent, error) {
		return nil, fmt.Errorf("cannot build %s agent", role)
	},
	"short": func(role string) (studentagent.Agent, error) {
		return studentAgent(func([]float64, string) ([]float64, error) {
			return []float64{0, 0}, nil
		}), nil
	},
	"sleepy": func(role string) (studentagent.Agent, error) {
		return studentAgent(func([]float64, string) ([]float64, error) {
			time.Sleep(time.Minute)
			return make([]float64, studentagent.ActionDim), nil
		}), nil
	},
}

type studentAgent func(observation []float64, participantID string) ([]float64, error)

func (f studentAgent) GetAction(observation []float64, participantID string) ([]float64, error) {
	return f(observation, participantID)
}
