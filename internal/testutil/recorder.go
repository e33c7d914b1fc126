package testutil

import (
	"context"
	"sync"

	"github.com/roach88/tagcheck/internal/agent"
)

// Call is one recorded GetAction invocation.
type Call struct {
	Instance      int
	ParticipantID string
	ObsLen        int
}

// Recorder is an agent factory that records what it was asked to do.
//
// Every agent it builds returns a zero action of length ActionDim and appends
// a Call to the recorder. Instances are numbered from 1 in construction order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	ActionDim int

	mu        sync.Mutex
	roles     []agent.Role
	calls     []Call
	instances int
	released  int
}

// NewRecorder creates a recorder whose agents return 5-component actions.
func NewRecorder() *Recorder {
	return &Recorder{ActionDim: 5}
}

// Factory builds a recording agent.
func (r *Recorder) Factory(ctx context.Context, role agent.Role) (agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances++
	r.roles = append(r.roles, role)
	return &recordingAgent{rec: r, instance: r.instances}, nil
}

// Roles returns the role of every constructed agent, in order.
func (r *Recorder) Roles() []agent.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.Role(nil), r.roles...)
}

// Calls returns every recorded GetAction call, in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Instances returns how many agents were constructed.
func (r *Recorder) Instances() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances
}

// Released returns how many agents were closed.
func (r *Recorder) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = nil
	r.calls = nil
	r.instances = 0
	r.released = 0
}

type recordingAgent struct {
	rec      *Recorder
	instance int
}

func (a *recordingAgent) GetAction(ctx context.Context, observation []float64, participantID string) ([]float64, error) {
	a.rec.mu.Lock()
	defer a.rec.mu.Unlock()
	a.rec.calls = append(a.rec.calls, Call{
		Instance:      a.instance,
		ParticipantID: participantID,
		ObsLen:        len(observation),
	})
	return make([]float64, a.rec.ActionDim), nil
}

func (a *recordingAgent) Close() error {
	a.rec.mu.Lock()
	defer a.rec.mu.Unlock()
	a.rec.released++
	return nil
}
