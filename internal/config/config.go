// Package config holds tagcheck's settings and the layers they come from:
// defaults, an optional YAML file, TAGCHECK_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/internal/mpe"
)

//go:embed schema.cue
var schemaSource string

// Config holds every setting of a tagcheck run.
type Config struct {
	Episodes         int           `yaml:"episodes"`
	MaxSteps         int           `yaml:"max_steps"`
	Seed             int64         `yaml:"seed"`
	Roles            []string      `yaml:"roles"`
	ExpectName       string        `yaml:"expect_name"`
	Interpreter      string        `yaml:"interpreter"`
	ActionTimeout    time.Duration `yaml:"action_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	Env EnvSettings `yaml:"env"`
}

// EnvSettings is the composition of the simulated world.
type EnvSettings struct {
	NumGood           int  `yaml:"num_good"`
	NumAdversaries    int  `yaml:"num_adversaries"`
	NumObstacles      int  `yaml:"num_obstacles"`
	MaxCycles         int  `yaml:"max_cycles"`
	ContinuousActions bool `yaml:"continuous_actions"`
}

// Default returns the settings of a standard pre-submission check.
func Default() *Config {
	env := mpe.DefaultConfig()
	return &Config{
		Episodes:         5,
		MaxSteps:         25,
		Seed:             0,
		Roles:            []string{string(agent.RolePrey), string(agent.RolePredator)},
		ExpectName:       "agent.py",
		ActionTimeout:    0, // unbounded
		HandshakeTimeout: 10 * time.Second,
		Env: EnvSettings{
			NumGood:           env.NumGood,
			NumAdversaries:    env.NumAdversaries,
			NumObstacles:      env.NumObstacles,
			MaxCycles:         env.MaxCycles,
			ContinuousActions: env.ContinuousActions,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if c.ActionTimeout < 0 {
		return fmt.Errorf("action_timeout must not be negative")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if _, err := c.ParsedRoles(); err != nil {
		return err
	}
	if err := c.EnvConfig().Validate(); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}

// ParsedRoles returns the roles to test, in order.
func (c *Config) ParsedRoles() ([]agent.Role, error) {
	if len(c.Roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	roles := make([]agent.Role, 0, len(c.Roles))
	seen := make(map[agent.Role]bool, len(c.Roles))
	for _, s := range c.Roles {
		role, err := agent.ParseRole(s)
		if err != nil {
			return nil, err
		}
		if seen[role] {
			return nil, fmt.Errorf("role %q listed twice", role)
		}
		seen[role] = true
		roles = append(roles, role)
	}
	return roles, nil
}

// EnvConfig returns the environment configuration.
func (c *Config) EnvConfig() mpe.Config {
	return mpe.Config{
		NumGood:           c.Env.NumGood,
		NumAdversaries:    c.Env.NumAdversaries,
		NumObstacles:      c.Env.NumObstacles,
		MaxCycles:         c.Env.MaxCycles,
		ContinuousActions: c.Env.ContinuousActions,
	}
}

// Load reads a YAML configuration file on top of the defaults. The file is
// checked against the embedded CUE schema before it is decoded, and unknown
// keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := checkSchema(path, data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func checkSchema(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}

// splitList accepts both repeated values and comma-separated strings.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
