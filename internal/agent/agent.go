package agent

import (
	"context"
	"io"
)

// Agent supplies actions for a controlled participant.
type Agent interface {
	GetAction(ctx context.Context, observation []float64, participantID string) ([]float64, error)
}

// Factory constructs an Agent for a role, like calling StudentAgent(role).
type Factory func(ctx context.Context, role Role) (Agent, error)

// Func adapts a plain function to the Agent interface.
type Func func(ctx context.Context, observation []float64, participantID string) ([]float64, error)

// GetAction calls f.
func (f Func) GetAction(ctx context.Context, observation []float64, participantID string) ([]float64, error) {
	return f(ctx, observation, participantID)
}

// Release closes a if it holds resources. Agents without a Close method are
// left alone.
func Release(a Agent) error {
	closer, ok := a.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
