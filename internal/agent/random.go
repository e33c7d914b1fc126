package agent

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomPolicy samples every action component independently and uniformly
// from its [low, high] interval. It ignores observations.
type RandomPolicy struct {
	dims []distuv.Uniform
}

// NewRandom creates a random policy for a continuous action space with the
// given per-component bounds. All components draw from src.
func NewRandom(low, high []float64, src rand.Source) (*RandomPolicy, error) {
	if len(low) != len(high) {
		return nil, fmt.Errorf("continuous action space bounds mismatch: %d low, %d high", len(low), len(high))
	}
	if len(low) == 0 {
		return nil, fmt.Errorf("continuous action space must have at least one dimension")
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}

	dims := make([]distuv.Uniform, len(low))
	for i := range low {
		if low[i] > high[i] {
			return nil, fmt.Errorf("dimension %d: low %v exceeds high %v", i, low[i], high[i])
		}
		dims[i] = distuv.Uniform{Min: low[i], Max: high[i], Src: src}
	}
	return &RandomPolicy{dims: dims}, nil
}

// NewUniformRandom creates a random policy with dim components in
// [low, high], seeded deterministically.
func NewUniformRandom(dim int, low, high float64, seed uint64) (*RandomPolicy, error) {
	lows := make([]float64, dim)
	highs := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lows[i] = low
		highs[i] = high
	}
	return NewRandom(lows, highs, rand.NewSource(seed))
}

// Dim returns the action dimensionality.
func (p *RandomPolicy) Dim() int {
	return len(p.dims)
}

// Sample draws one action.
func (p *RandomPolicy) Sample() []float64 {
	action := make([]float64, len(p.dims))
	for i, d := range p.dims {
		action[i] = d.Rand()
	}
	return action
}

// GetAction implements Agent.
func (p *RandomPolicy) GetAction(ctx context.Context, observation []float64, participantID string) ([]float64, error) {
	return p.Sample(), nil
}
