package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tagcheck/internal/mpe"
)

// fakeEnv is a scripted parallel environment. Predators earn the step number
// every step and prey lose half of it.
type fakeEnv struct {
	ids       []string
	maxCycles int
	stepErrAt int
	resetErr  error

	agents  []string
	cycles  int
	seed    int64
	closed  bool
	actions []map[string][]float64
}

// fakeEnvs creates fakeEnvs and remembers them for inspection.
type fakeEnvs struct {
	ids       []string
	maxCycles int
	stepErrAt int
	resetErr  error
	createErr error

	created []*fakeEnv
}

func newFakeEnvs(maxCycles int, ids ...string) *fakeEnvs {
	if len(ids) == 0 {
		ids = []string{"adversary_0", "adversary_1", "adversary_2", "agent_0"}
	}
	return &fakeEnvs{ids: ids, maxCycles: maxCycles}
}

func (f *fakeEnvs) factory(cfg mpe.Config) (Environment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	env := &fakeEnv{
		ids:       f.ids,
		maxCycles: f.maxCycles,
		stepErrAt: f.stepErrAt,
		resetErr:  f.resetErr,
	}
	f.created = append(f.created, env)
	return env, nil
}

func (e *fakeEnv) Agents() []string {
	return append([]string(nil), e.agents...)
}

func (e *fakeEnv) observations() map[string][]float64 {
	obs := make(map[string][]float64, len(e.agents))
	for _, id := range e.agents {
		obs[id] = []float64{float64(e.seed), float64(e.cycles)}
	}
	return obs
}

func (e *fakeEnv) Reset(seed int64) (map[string][]float64, mpe.Infos, error) {
	if e.resetErr != nil {
		return nil, nil, e.resetErr
	}
	e.seed = seed
	e.cycles = 0
	e.agents = append([]string(nil), e.ids...)
	return e.observations(), mpe.Infos{}, nil
}

func (e *fakeEnv) Step(actions map[string][]float64) (*mpe.StepResult, error) {
	if e.closed {
		return nil, mpe.ErrClosed
	}
	if e.stepErrAt > 0 && e.cycles+1 == e.stepErrAt {
		return nil, errors.New("physics exploded")
	}
	for _, id := range e.agents {
		if len(actions[id]) != mpe.ContinuousActionDim {
			return nil, fmt.Errorf("participant %q: continuous action must have 5 components, got %d", id, len(actions[id]))
		}
	}
	e.actions = append(e.actions, actions)
	e.cycles++

	res := &mpe.StepResult{
		Rewards:      make(map[string]float64),
		Terminations: make(map[string]bool),
		Truncations:  make(map[string]bool),
		Infos:        mpe.Infos{},
	}
	for _, id := range e.agents {
		if strings.HasPrefix(id, "adversary") {
			res.Rewards[id] = float64(e.cycles)
		} else {
			res.Rewards[id] = -0.5 * float64(e.cycles)
		}
		res.Truncations[id] = e.cycles >= e.maxCycles
	}
	res.Observations = e.observations()
	if e.cycles >= e.maxCycles {
		e.agents = nil
	}
	return res, nil
}

func (e *fakeEnv) Close() error {
	e.closed = true
	return nil
}
