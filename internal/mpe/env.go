package mpe

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// ContinuousActionDim is the length of a continuous action: a no-op
// component followed by left, right, down and up pushes.
const ContinuousActionDim = 5

// DiscreteActions is the number of discrete actions (no-op, left, right,
// down, up). A discrete action is a one-element vector holding the index.
const DiscreteActions = 5

// ErrClosed is returned by calls on a closed environment.
var ErrClosed = errors.New("environment is closed")

// Config selects the composition of a tag environment.
type Config struct {
	NumGood           int
	NumAdversaries    int
	NumObstacles      int
	MaxCycles         int
	ContinuousActions bool
}

// DefaultConfig is one prey, three predators and two obstacles, with
// continuous actions and 25-cycle episodes.
func DefaultConfig() Config {
	return Config{
		NumGood:           1,
		NumAdversaries:    3,
		NumObstacles:      2,
		MaxCycles:         25,
		ContinuousActions: true,
	}
}

// Validate checks that the configuration describes a playable world.
func (c Config) Validate() error {
	if c.NumGood < 0 || c.NumAdversaries < 0 || c.NumObstacles < 0 {
		return fmt.Errorf("participant and obstacle counts must be non-negative")
	}
	if c.NumGood+c.NumAdversaries == 0 {
		return fmt.Errorf("at least one participant is required")
	}
	if c.MaxCycles <= 0 {
		return fmt.Errorf("max_cycles must be positive")
	}
	return nil
}

// Infos carries per-participant auxiliary data. The tag scenario leaves it
// empty.
type Infos map[string]map[string]any

// StepResult is everything one parallel step returns.
type StepResult struct {
	Observations map[string][]float64
	Rewards      map[string]float64
	Terminations map[string]bool
	Truncations  map[string]bool
	Infos        Infos
}

// ParallelEnv is the predator/prey tag game in which all participants act at
// once. Agents() is empty before Reset and after the episode ends.
type ParallelEnv struct {
	cfg    Config
	world  *world
	byName map[string]*participant

	possibleAgents []string
	agents         []string
	cycles         int
	ready          bool
	closed         bool
}

// NewParallelEnv creates a tag environment. Call Reset before stepping.
func NewParallelEnv(cfg Config) (*ParallelEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}

	w := newTagWorld(cfg)
	e := &ParallelEnv{
		cfg:    cfg,
		world:  w,
		byName: make(map[string]*participant, len(w.participants)),
	}
	for _, p := range w.participants {
		e.possibleAgents = append(e.possibleAgents, p.name)
		e.byName[p.name] = p
	}
	return e, nil
}

// Config returns the environment's configuration.
func (e *ParallelEnv) Config() Config {
	return e.cfg
}

// PossibleAgents lists every participant id, predators first.
func (e *ParallelEnv) PossibleAgents() []string {
	return append([]string(nil), e.possibleAgents...)
}

// Agents lists the participants still active in the current episode.
func (e *ParallelEnv) Agents() []string {
	return append([]string(nil), e.agents...)
}

// ActionDim is the length of the action vector each participant submits.
func (e *ParallelEnv) ActionDim() int {
	if e.cfg.ContinuousActions {
		return ContinuousActionDim
	}
	return 1
}

// ObservationDim is the length of a participant's observation vector.
func (e *ParallelEnv) ObservationDim(id string) (int, bool) {
	p, ok := e.byName[id]
	if !ok {
		return 0, false
	}
	return observationDim(e.world, p), true
}

// Reset starts a new episode. Equal seeds produce equal episodes.
func (e *ParallelEnv) Reset(seed int64) (map[string][]float64, Infos, error) {
	if e.closed {
		return nil, nil, ErrClosed
	}

	resetTagWorld(e.world, rand.NewSource(uint64(seed)))
	e.agents = e.PossibleAgents()
	e.cycles = 0
	e.ready = true

	obs := make(map[string][]float64, len(e.agents))
	infos := make(Infos, len(e.agents))
	for _, id := range e.agents {
		obs[id] = tagObservation(e.world, e.byName[id])
		infos[id] = map[string]any{}
	}
	return obs, infos, nil
}

// Step applies one action per active participant and advances the world.
// Every active participant must have an action and no other ids are
// accepted. When the cycle cap is reached all participants are truncated and
// Agents() becomes empty.
func (e *ParallelEnv) Step(actions map[string][]float64) (*StepResult, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if !e.ready {
		return nil, fmt.Errorf("step before reset")
	}
	if len(e.agents) == 0 {
		return nil, fmt.Errorf("step after episode end")
	}

	active := make(map[string]bool, len(e.agents))
	for _, id := range e.agents {
		active[id] = true
	}
	for id := range actions {
		if !active[id] {
			return nil, fmt.Errorf("action for unknown or inactive participant %q", id)
		}
	}

	for _, id := range e.agents {
		action, ok := actions[id]
		if !ok {
			return nil, fmt.Errorf("missing action for participant %q", id)
		}
		u, err := e.decodeAction(action)
		if err != nil {
			return nil, fmt.Errorf("participant %q: %w", id, err)
		}
		p := e.byName[id]
		p.u = r2.Scale(p.accel, u)
	}

	e.world.step()
	e.cycles++
	truncated := e.cycles >= e.cfg.MaxCycles

	result := &StepResult{
		Observations: make(map[string][]float64, len(e.agents)),
		Rewards:      make(map[string]float64, len(e.agents)),
		Terminations: make(map[string]bool, len(e.agents)),
		Truncations:  make(map[string]bool, len(e.agents)),
		Infos:        make(Infos, len(e.agents)),
	}
	for _, id := range e.agents {
		p := e.byName[id]
		result.Observations[id] = tagObservation(e.world, p)
		result.Rewards[id] = tagRewardFor(e.world, p)
		result.Terminations[id] = false
		result.Truncations[id] = truncated
		result.Infos[id] = map[string]any{}
	}

	if truncated {
		e.agents = nil
	}
	return result, nil
}

// decodeAction converts an action vector into a unit-scale movement.
func (e *ParallelEnv) decodeAction(action []float64) (r2.Vec, error) {
	if e.cfg.ContinuousActions {
		if len(action) != ContinuousActionDim {
			return r2.Vec{}, fmt.Errorf("continuous action must have %d components, got %d", ContinuousActionDim, len(action))
		}
		return r2.Vec{X: action[2] - action[1], Y: action[4] - action[3]}, nil
	}

	if len(action) != 1 {
		return r2.Vec{}, fmt.Errorf("discrete action must have 1 component, got %d", len(action))
	}
	idx := action[0]
	if idx != math.Trunc(idx) || idx < 0 || idx >= DiscreteActions {
		return r2.Vec{}, fmt.Errorf("discrete action must be an integer in [0, %d), got %v", DiscreteActions, idx)
	}
	switch int(idx) {
	case 1:
		return r2.Vec{X: -1}, nil
	case 2:
		return r2.Vec{X: 1}, nil
	case 3:
		return r2.Vec{Y: -1}, nil
	case 4:
		return r2.Vec{Y: 1}, nil
	}
	return r2.Vec{}, nil
}

// Close releases the environment. Further calls fail with ErrClosed.
func (e *ParallelEnv) Close() error {
	e.closed = true
	e.agents = nil
	return nil
}
