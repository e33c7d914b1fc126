package mpe

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func zeroActions(ids []string) map[string][]float64 {
	actions := make(map[string][]float64, len(ids))
	for _, id := range ids {
		actions[id] = make([]float64, ContinuousActionDim)
	}
	return actions
}

func newDefaultEnv(t *testing.T) *ParallelEnv {
	t.Helper()
	env, err := NewParallelEnv(DefaultConfig())
	require.NoError(t, err)
	return env
}

func TestNewParallelEnv_Composition(t *testing.T) {
	env := newDefaultEnv(t)

	assert.Equal(t, []string{"adversary_0", "adversary_1", "adversary_2", "agent_0"}, env.PossibleAgents())
	assert.Empty(t, env.Agents(), "no active participants before reset")
	assert.Equal(t, ContinuousActionDim, env.ActionDim())

	dim, ok := env.ObservationDim("adversary_0")
	require.True(t, ok)
	assert.Equal(t, 16, dim)

	dim, ok = env.ObservationDim("agent_0")
	require.True(t, ok)
	assert.Equal(t, 14, dim)

	_, ok = env.ObservationDim("nobody")
	assert.False(t, ok)
}

func TestNewParallelEnv_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no participants", Config{MaxCycles: 25}},
		{"negative obstacles", Config{NumGood: 1, NumObstacles: -1, MaxCycles: 25}},
		{"zero cycles", Config{NumGood: 1, NumAdversaries: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParallelEnv(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestReset_ObservationShapes(t *testing.T) {
	env := newDefaultEnv(t)

	obs, infos, err := env.Reset(0)
	require.NoError(t, err)
	assert.Len(t, obs, 4)
	assert.Len(t, infos, 4)

	for _, id := range env.Agents() {
		dim, _ := env.ObservationDim(id)
		assert.Len(t, obs[id], dim, "participant %s", id)
		// Everyone starts at rest.
		assert.Equal(t, 0.0, obs[id][0])
		assert.Equal(t, 0.0, obs[id][1])
		// Starting positions are inside the unit square.
		assert.LessOrEqual(t, math.Abs(obs[id][2]), 1.0)
		assert.LessOrEqual(t, math.Abs(obs[id][3]), 1.0)
	}
}

func TestReset_Deterministic(t *testing.T) {
	env1 := newDefaultEnv(t)
	env2 := newDefaultEnv(t)

	obs1, _, err := env1.Reset(3)
	require.NoError(t, err)
	obs2, _, err := env2.Reset(3)
	require.NoError(t, err)
	assert.Equal(t, obs1, obs2)

	obs3, _, err := env2.Reset(4)
	require.NoError(t, err)
	assert.NotEqual(t, obs1, obs3)
}

func TestStep_TruncatesAtCycleCap(t *testing.T) {
	env := newDefaultEnv(t)
	_, _, err := env.Reset(0)
	require.NoError(t, err)

	steps := 0
	for len(env.Agents()) > 0 {
		res, err := env.Step(zeroActions(env.Agents()))
		require.NoError(t, err)
		steps++

		assert.Len(t, res.Observations, 4)
		assert.Len(t, res.Rewards, 4)
		for id, terminated := range res.Terminations {
			assert.False(t, terminated, "participant %s", id)
			assert.Equal(t, steps == 25, res.Truncations[id], "participant %s at step %d", id, steps)
		}
		require.LessOrEqual(t, steps, 25)
	}
	assert.Equal(t, 25, steps)

	_, err = env.Step(zeroActions(env.PossibleAgents()))
	assert.ErrorContains(t, err, "after episode end")
}

func TestStep_Deterministic(t *testing.T) {
	run := func() []map[string]float64 {
		env := newDefaultEnv(t)
		_, _, err := env.Reset(11)
		require.NoError(t, err)

		var rewards []map[string]float64
		for i := 0; len(env.Agents()) > 0; i++ {
			actions := make(map[string][]float64)
			for j, id := range env.Agents() {
				// Fixed but non-trivial pushes.
				actions[id] = []float64{0, float64(j%2) * 0.5, 0.3, 0, float64(i%3) * 0.2}
			}
			res, err := env.Step(actions)
			require.NoError(t, err)
			rewards = append(rewards, res.Rewards)
		}
		return rewards
	}

	assert.Equal(t, run(), run())
}

func TestStep_ActionValidation(t *testing.T) {
	env := newDefaultEnv(t)

	_, err := env.Step(zeroActions(env.PossibleAgents()))
	assert.ErrorContains(t, err, "before reset")

	_, _, err = env.Reset(0)
	require.NoError(t, err)

	actions := zeroActions(env.Agents())
	delete(actions, "agent_0")
	_, err = env.Step(actions)
	assert.ErrorContains(t, err, `missing action for participant "agent_0"`)

	actions = zeroActions(env.Agents())
	actions["agent_9"] = make([]float64, 5)
	_, err = env.Step(actions)
	assert.ErrorContains(t, err, `unknown or inactive participant "agent_9"`)

	actions = zeroActions(env.Agents())
	actions["adversary_1"] = []float64{0, 1}
	_, err = env.Step(actions)
	assert.ErrorContains(t, err, "must have 5 components, got 2")
}

func TestStep_DiscreteActions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContinuousActions = false
	env, err := NewParallelEnv(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, env.ActionDim())

	_, _, err = env.Reset(0)
	require.NoError(t, err)

	actions := make(map[string][]float64)
	for i, id := range env.Agents() {
		actions[id] = []float64{float64(i % DiscreteActions)}
	}
	_, err = env.Step(actions)
	require.NoError(t, err)

	actions["agent_0"] = []float64{1.5}
	_, err = env.Step(actions)
	assert.ErrorContains(t, err, "integer in [0, 5)")

	actions["agent_0"] = []float64{5}
	_, err = env.Step(actions)
	assert.Error(t, err)
}

func TestStep_ActionMovesParticipant(t *testing.T) {
	cfg := Config{NumGood: 1, MaxCycles: 25, ContinuousActions: true}
	env, err := NewParallelEnv(cfg)
	require.NoError(t, err)

	obs, _, err := env.Reset(5)
	require.NoError(t, err)
	startX := obs["agent_0"][2]

	// Push right: component 2 minus component 1.
	res, err := env.Step(map[string][]float64{"agent_0": {0, 0, 1, 0, 0}})
	require.NoError(t, err)

	vx := res.Observations["agent_0"][0]
	assert.InDelta(t, preyAccel*dt, vx, 1e-12)
	assert.InDelta(t, startX+vx*dt, res.Observations["agent_0"][2], 1e-12)
}

func TestStep_SpeedIsCapped(t *testing.T) {
	cfg := Config{NumAdversaries: 1, MaxCycles: 100, ContinuousActions: true}
	env, err := NewParallelEnv(cfg)
	require.NoError(t, err)
	_, _, err = env.Reset(1)
	require.NoError(t, err)

	var res *StepResult
	for i := 0; i < 50; i++ {
		res, err = env.Step(map[string][]float64{"adversary_0": {0, 0, 1, 0, 1}})
		require.NoError(t, err)
	}
	v := r2.Vec{X: res.Observations["adversary_0"][0], Y: res.Observations["adversary_0"][1]}
	assert.InDelta(t, predatorMaxSpeed, r2.Norm(v), 1e-9)
}

func TestClose(t *testing.T) {
	env := newDefaultEnv(t)
	_, _, err := env.Reset(0)
	require.NoError(t, err)

	require.NoError(t, env.Close())
	assert.Empty(t, env.Agents())

	_, _, err = env.Reset(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = env.Step(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCollisionForceSeparates(t *testing.T) {
	a := &entity{size: 0.1, movable: true, collide: true, pos: r2.Vec{X: 0.05}}
	b := &entity{size: 0.1, movable: true, collide: true, pos: r2.Vec{X: -0.05}}

	fa, fb, ok := collisionForce(a, b)
	require.True(t, ok)
	assert.Greater(t, fa.X, 0.0, "a is pushed away from b")
	assert.Less(t, fb.X, 0.0, "b is pushed away from a")
	assert.InDelta(t, 0.0, fa.Y, 1e-12)

	ghost := &entity{size: 0.1, pos: r2.Vec{X: 0.05}}
	_, _, ok = collisionForce(ghost, b)
	assert.False(t, ok)
}

func TestRewards(t *testing.T) {
	w := newTagWorld(Config{NumGood: 1, NumAdversaries: 2, MaxCycles: 1})
	pred0, pred1, prey := w.participants[0], w.participants[1], w.participants[2]

	prey.pos = r2.Vec{}
	pred0.pos = r2.Vec{X: 0.1}  // touching: 0.1 < 0.075+0.05
	pred1.pos = r2.Vec{X: -0.5} // far away

	assert.Equal(t, -10.0, tagRewardFor(w, prey))
	assert.Equal(t, 10.0, tagRewardFor(w, pred0))
	assert.Equal(t, 10.0, tagRewardFor(w, pred1), "predator reward is shared")

	pred1.pos = r2.Vec{Y: 0.1}
	assert.Equal(t, -20.0, tagRewardFor(w, prey))
	assert.Equal(t, 20.0, tagRewardFor(w, pred0))
}

func TestBoundaryPenalty(t *testing.T) {
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0},
		{0.89, 0},
		{0.95, 0.5},
		{1.0, 1},
		{1.5, math.Exp(1)},
		{10, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.x), func(t *testing.T) {
			assert.InDelta(t, tt.want, boundaryPenalty(tt.x), 1e-12)
		})
	}
}

func TestSoftplus(t *testing.T) {
	assert.InDelta(t, math.Log(2), softplus(0), 1e-12)
	assert.InDelta(t, 1000.0, softplus(1000), 1e-9)
	assert.InDelta(t, 0.0, softplus(-1000), 1e-12)
}
