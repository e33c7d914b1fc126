package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestRandomPolicy_Bounds(t *testing.T) {
	policy, err := NewUniformRandom(5, -1, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, policy.Dim())

	for i := 0; i < 1000; i++ {
		action := policy.Sample()
		require.Len(t, action, 5)
		for _, v := range action {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestRandomPolicy_PerDimensionBounds(t *testing.T) {
	policy, err := NewRandom([]float64{-1, 0, 10}, []float64{1, 0.5, 10}, rand.NewSource(1))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		action := policy.Sample()
		assert.True(t, action[0] >= -1 && action[0] <= 1)
		assert.True(t, action[1] >= 0 && action[1] <= 0.5)
		assert.Equal(t, 10.0, action[2])
	}
}

func TestRandomPolicy_Deterministic(t *testing.T) {
	p1, err := NewUniformRandom(5, -1, 1, 7)
	require.NoError(t, err)
	p2, err := NewUniformRandom(5, -1, 1, 7)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		assert.Equal(t, p1.Sample(), p2.Sample())
	}
}

func TestRandomPolicy_Variety(t *testing.T) {
	policy, err := NewUniformRandom(5, -1, 1, 3)
	require.NoError(t, err)

	seen := make(map[float64]bool)
	for i := 0; i < 100; i++ {
		seen[policy.Sample()[0]] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRandomPolicy_InvalidSpace(t *testing.T) {
	_, err := NewRandom([]float64{-1}, []float64{1, 1}, rand.NewSource(1))
	assert.ErrorContains(t, err, "bounds mismatch")

	_, err = NewRandom(nil, nil, rand.NewSource(1))
	assert.ErrorContains(t, err, "at least one dimension")

	_, err = NewRandom([]float64{1}, []float64{-1}, rand.NewSource(1))
	assert.ErrorContains(t, err, "exceeds high")

	_, err = NewRandom([]float64{-1}, []float64{1}, nil)
	assert.ErrorContains(t, err, "source is required")
}

func TestRandomPolicy_ImplementsAgent(t *testing.T) {
	var a Agent
	policy, err := NewUniformRandom(5, -1, 1, 1)
	require.NoError(t, err)
	a = policy

	action, err := a.GetAction(context.Background(), nil, "agent_0")
	require.NoError(t, err)
	assert.Len(t, action, 5)
}

func TestFuncAndRelease(t *testing.T) {
	called := false
	f := Func(func(ctx context.Context, observation []float64, participantID string) ([]float64, error) {
		called = true
		return []float64{1}, nil
	})

	action, err := f.GetAction(context.Background(), nil, "agent_0")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []float64{1}, action)

	// Agents without Close are released without error.
	assert.NoError(t, Release(f))

	c := &closingAgent{}
	assert.NoError(t, Release(c))
	assert.True(t, c.closed)
}

type closingAgent struct{ closed bool }

func (c *closingAgent) GetAction(context.Context, []float64, string) ([]float64, error) {
	return nil, nil
}

func (c *closingAgent) Close() error {
	c.closed = true
	return nil
}
