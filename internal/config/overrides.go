package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Keys shared by flags and environment variables. The environment variable
// for a key is TAGCHECK_ followed by the key upper-cased with dashes replaced
// by underscores, e.g. TAGCHECK_MAX_STEPS.
const (
	KeyEpisodes          = "episodes"
	KeyMaxSteps          = "max-steps"
	KeySeed              = "seed"
	KeyRoles             = "roles"
	KeyExpectName        = "expect-name"
	KeyInterpreter       = "interpreter"
	KeyActionTimeout     = "action-timeout"
	KeyHandshakeTimeout  = "handshake-timeout"
	KeyNumGood           = "num-good"
	KeyNumAdversaries    = "num-adversaries"
	KeyNumObstacles      = "num-obstacles"
	KeyMaxCycles         = "max-cycles"
	KeyContinuousActions = "continuous-actions"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TAGCHECK"

// NewViper returns a viper instance reading TAGCHECK_* variables. Bind the
// command's flags to it with BindPFlags.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key explicitly set through v (a changed flag or
// an environment variable) into c. Flags win over environment variables.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if v.IsSet(KeyEpisodes) {
		c.Episodes = v.GetInt(KeyEpisodes)
	}
	if v.IsSet(KeyMaxSteps) {
		c.MaxSteps = v.GetInt(KeyMaxSteps)
	}
	if v.IsSet(KeySeed) {
		c.Seed = v.GetInt64(KeySeed)
	}
	if v.IsSet(KeyRoles) {
		c.Roles = splitList(v.GetStringSlice(KeyRoles))
	}
	if v.IsSet(KeyExpectName) {
		c.ExpectName = v.GetString(KeyExpectName)
	}
	if v.IsSet(KeyInterpreter) {
		c.Interpreter = v.GetString(KeyInterpreter)
	}
	if v.IsSet(KeyActionTimeout) {
		c.ActionTimeout = v.GetDuration(KeyActionTimeout)
	}
	if v.IsSet(KeyHandshakeTimeout) {
		c.HandshakeTimeout = v.GetDuration(KeyHandshakeTimeout)
	}
	if v.IsSet(KeyNumGood) {
		c.Env.NumGood = v.GetInt(KeyNumGood)
	}
	if v.IsSet(KeyNumAdversaries) {
		c.Env.NumAdversaries = v.GetInt(KeyNumAdversaries)
	}
	if v.IsSet(KeyNumObstacles) {
		c.Env.NumObstacles = v.GetInt(KeyNumObstacles)
	}
	if v.IsSet(KeyMaxCycles) {
		c.Env.MaxCycles = v.GetInt(KeyMaxCycles)
	}
	if v.IsSet(KeyContinuousActions) {
		c.Env.ContinuousActions = v.GetBool(KeyContinuousActions)
	}
}
