package harness

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/tagcheck/internal/agent"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrInit   = errors.New("agent initialization failed")
	ErrAction = errors.New("get_action failed")
	ErrStep   = errors.New("environment step failed")
)

// Error codes by failure kind.
const (
	ErrCodeInit   = "E301"
	ErrCodeAction = "E302"
	ErrCodeStep   = "E303"
)

// Error is a failure that aborted a role. Episode and Step are 1-based; zero
// means the failure happened outside an episode or before the first step.
type Error struct {
	Kind        error
	Role        agent.Role
	Episode     int
	Step        int
	Participant string
	Err         error
}

func (e *Error) Error() string {
	var where []string
	if e.Episode > 0 {
		where = append(where, fmt.Sprintf("episode %d", e.Episode))
	}
	if e.Step > 0 {
		where = append(where, fmt.Sprintf("step %d", e.Step))
	}
	if e.Participant != "" {
		where = append(where, e.Participant)
	}

	msg := fmt.Sprintf("%s: %s", e.Role, e.Kind)
	if len(where) > 0 {
		msg += " (" + strings.Join(where, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the error code of the failure kind.
func (e *Error) Code() string {
	switch e.Kind {
	case ErrInit:
		return ErrCodeInit
	case ErrAction:
		return ErrCodeAction
	case ErrStep:
		return ErrCodeStep
	}
	return ""
}

// EpisodeResult is the outcome of one completed episode.
type EpisodeResult struct {
	Episode int     `json:"episode"`
	Seed    int64   `json:"seed"`
	Reward  float64 `json:"reward"`
	Steps   int     `json:"steps"`
}

// RoleResult summarizes every episode played for a role.
type RoleResult struct {
	Role          agent.Role      `json:"role"`
	Episodes      []EpisodeResult `json:"episodes"`
	AverageReward float64         `json:"average_reward"`
	StdDevReward  float64         `json:"stddev_reward"`
	MinReward     float64         `json:"min_reward"`
	MaxReward     float64         `json:"max_reward"`
}

// newRoleResult computes the summary statistics of episodes.
func newRoleResult(role agent.Role, episodes []EpisodeResult) *RoleResult {
	res := &RoleResult{Role: role, Episodes: episodes}
	if len(episodes) == 0 {
		return res
	}

	rewards := make([]float64, len(episodes))
	for i, ep := range episodes {
		rewards[i] = ep.Reward
	}
	res.AverageReward = floats.Sum(rewards) / float64(len(rewards))
	if len(rewards) > 1 {
		res.StdDevReward = stat.StdDev(rewards, nil)
	}
	res.MinReward = floats.Min(rewards)
	res.MaxReward = floats.Max(rewards)
	return res
}

// StepRecord describes one completed environment step.
type StepRecord struct {
	Role    agent.Role         `json:"role"`
	Episode int                `json:"episode"`
	Step    int                `json:"step"`
	Rewards map[string]float64 `json:"rewards"` // controlled participants only
}

// Observer is told about progress as a role is tested.
type Observer interface {
	AgentInitialized(role agent.Role)
	EpisodeFinished(role agent.Role, ep EpisodeResult)
}

// StepObserver is an Observer that also wants every step.
type StepObserver interface {
	Observer
	StepFinished(rec StepRecord)
}

type nopObserver struct{}

func (nopObserver) AgentInitialized(agent.Role)              {}
func (nopObserver) EpisodeFinished(agent.Role, EpisodeResult) {}
