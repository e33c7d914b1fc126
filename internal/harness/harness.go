package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/internal/mpe"
)

// Defaults for a role test.
const (
	DefaultEpisodes = 5
	DefaultMaxSteps = 25
)

// opponentSeedSalt separates the opponent stream from the environment's,
// which is seeded with the bare episode seed.
const opponentSeedSalt uint64 = 0x9e3779b97f4a7c15

// Environment is the parallel multi-agent API the harness drives.
// *mpe.ParallelEnv implements it.
type Environment interface {
	Agents() []string
	Reset(seed int64) (map[string][]float64, mpe.Infos, error)
	Step(actions map[string][]float64) (*mpe.StepResult, error)
	Close() error
}

// EnvFactory creates the environment for one episode.
type EnvFactory func(cfg mpe.Config) (Environment, error)

func newTagEnv(cfg mpe.Config) (Environment, error) {
	return mpe.NewParallelEnv(cfg)
}

// Harness tests agents built by one factory.
type Harness struct {
	factory       agent.Factory
	episodes      int
	maxSteps      int
	baseSeed      int64
	envConfig     mpe.Config
	newEnv        EnvFactory
	actionTimeout time.Duration
	observer      Observer
	logger        *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithEpisodes sets how many episodes are played per role.
func WithEpisodes(n int) Option {
	return func(h *Harness) { h.episodes = n }
}

// WithMaxSteps bounds the number of steps per episode, whatever the
// environment's own cycle cap.
func WithMaxSteps(n int) Option {
	return func(h *Harness) { h.maxSteps = n }
}

// WithBaseSeed sets the seed of the first episode; episode i uses base+i.
func WithBaseSeed(seed int64) Option {
	return func(h *Harness) { h.baseSeed = seed }
}

// WithEnvConfig sets the composition of every episode's environment.
func WithEnvConfig(cfg mpe.Config) Option {
	return func(h *Harness) { h.envConfig = cfg }
}

// WithEnvFactory replaces the tag environment, mostly for tests.
func WithEnvFactory(f EnvFactory) Option {
	return func(h *Harness) { h.newEnv = f }
}

// WithActionTimeout bounds every GetAction call. Zero means no bound.
func WithActionTimeout(d time.Duration) Option {
	return func(h *Harness) { h.actionTimeout = d }
}

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(h *Harness) { h.observer = o }
}

// WithLogger sets the logger. By default the harness logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness for agents built by factory.
func New(factory agent.Factory, opts ...Option) *Harness {
	h := &Harness{
		factory:   factory,
		episodes:  DefaultEpisodes,
		maxSteps:  DefaultMaxSteps,
		envConfig: mpe.DefaultConfig(),
		newEnv:    newTagEnv,
		observer:  nopObserver{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Episodes returns the number of episodes played per role.
func (h *Harness) Episodes() int {
	return h.episodes
}

// Run tests the agent in role. It returns a *Error for agent and environment
// failures and the context's error if ctx ends first.
func (h *Harness) Run(ctx context.Context, role agent.Role) (*RoleResult, error) {
	if h.episodes <= 0 {
		return nil, fmt.Errorf("episodes must be positive, got %d", h.episodes)
	}
	if h.maxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", h.maxSteps)
	}
	logger := h.logger.With("role", role)

	probe, err := h.factory(ctx, role)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: ErrInit, Role: role, Err: err}
	}
	h.release(logger, probe)
	h.observer.AgentInitialized(role)

	episodes := make([]EpisodeResult, 0, h.episodes)
	for i := 0; i < h.episodes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ep, err := h.runEpisode(ctx, logger, role, i)
		if err != nil {
			logger.Debug("role aborted", "episode", i+1, "error", err)
			return nil, err
		}
		logger.Debug("episode finished", "episode", ep.Episode, "seed", ep.Seed, "reward", ep.Reward, "steps", ep.Steps)
		episodes = append(episodes, *ep)
		h.observer.EpisodeFinished(role, *ep)
	}

	res := newRoleResult(role, episodes)
	logger.Debug("role passed", "average_reward", res.AverageReward, "stddev", res.StdDevReward)
	return res, nil
}

func (h *Harness) runEpisode(ctx context.Context, logger *slog.Logger, role agent.Role, index int) (*EpisodeResult, error) {
	seed := h.baseSeed + int64(index)
	res := &EpisodeResult{Episode: index + 1, Seed: seed}
	fail := func(kind error, step int, participant string, cause error) error {
		return &Error{Kind: kind, Role: role, Episode: res.Episode, Step: step, Participant: participant, Err: cause}
	}

	env, err := h.newEnv(h.envConfig)
	if err != nil {
		return nil, fail(ErrStep, 0, "", fmt.Errorf("create environment: %w", err))
	}
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("closing environment", "episode", res.Episode, "error", err)
		}
	}()

	observations, _, err := env.Reset(seed)
	if err != nil {
		return nil, fail(ErrStep, 0, "", fmt.Errorf("reset environment: %w", err))
	}

	opponents, err := newOpponentPolicy(h.envConfig, seed)
	if err != nil {
		return nil, fail(ErrStep, 0, "", fmt.Errorf("opponent policy: %w", err))
	}

	agents := make(map[string]agent.Agent)
	defer func() {
		for _, id := range slices.Sorted(maps.Keys(agents)) {
			h.release(logger, agents[id])
		}
	}()

	for res.Steps < h.maxSteps {
		active := env.Agents()
		if len(active) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		actions := make(map[string][]float64, len(active))
		for _, id := range active {
			if !role.Controls(id) {
				actions[id] = opponents.Sample()
				continue
			}

			a, ok := agents[id]
			if !ok {
				a, err = h.factory(ctx, role)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					return nil, fail(ErrInit, res.Steps+1, id, err)
				}
				agents[id] = a
			}

			action, err := h.getAction(ctx, a, observations[id], id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fail(ErrAction, res.Steps+1, id, err)
			}
			actions[id] = action
		}

		result, err := env.Step(actions)
		if err != nil {
			return nil, fail(ErrStep, res.Steps+1, "", err)
		}
		res.Steps++

		rewards := make(map[string]float64)
		for _, id := range slices.Sorted(maps.Keys(result.Rewards)) {
			if role.Controls(id) {
				rewards[id] = result.Rewards[id]
				res.Reward += result.Rewards[id]
			}
		}
		observations = result.Observations

		if so, ok := h.observer.(StepObserver); ok {
			so.StepFinished(StepRecord{Role: role, Episode: res.Episode, Step: res.Steps, Rewards: rewards})
		}
	}
	return res, nil
}

func (h *Harness) getAction(ctx context.Context, a agent.Agent, observation []float64, id string) ([]float64, error) {
	if h.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.actionTimeout)
		defer cancel()
	}
	action, err := a.GetAction(ctx, observation, id)
	if err != nil && h.actionTimeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("no action within %s: %w", h.actionTimeout, err)
	}
	return action, err
}

func (h *Harness) release(logger *slog.Logger, a agent.Agent) {
	if err := agent.Release(a); err != nil {
		logger.Warn("releasing agent", "error", err)
	}
}

// opponentPolicy drives the participants not under test.
type opponentPolicy interface {
	Sample() []float64
}

// newOpponentPolicy samples five components uniformly from [-1, 1] for
// continuous environments and a uniform action index otherwise.
func newOpponentPolicy(cfg mpe.Config, seed int64) (opponentPolicy, error) {
	src := uint64(seed) ^ opponentSeedSalt
	if cfg.ContinuousActions {
		return agent.NewUniformRandom(mpe.ContinuousActionDim, -1, 1, src)
	}
	p, err := agent.NewUniformRandom(1, 0, mpe.DiscreteActions, src)
	if err != nil {
		return nil, err
	}
	return discreteOpponent{p}, nil
}

type discreteOpponent struct {
	policy *agent.RandomPolicy
}

func (d discreteOpponent) Sample() []float64 {
	a := d.policy.Sample()
	a[0] = math.Min(math.Floor(a[0]), mpe.DiscreteActions-1)
	return a
}
