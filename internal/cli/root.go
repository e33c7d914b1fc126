package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/tagcheck/internal/config"
)

// RootOptions holds the flags that are not part of config.Config.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// RunIDs names each run. Defaults to UUIDv7Generator.
	RunIDs RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const usageText = `Usage: tagcheck <path_to_agent.py>

Example:
  tagcheck submissions/myusername/agent.py`

// NewRootCommand creates the tagcheck command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{RunIDs: UUIDv7Generator{}})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	v := config.NewViper()
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "tagcheck [flags] <path-to-agent-file>",
		Short: "Check a predator/prey agent before submission",
		Long: `Load a StudentAgent and play it through short predator/prey tag episodes.

The agent is tested as prey, then as predator. Participants it does not
control move randomly. A role passes when every episode completes without
an error from the agent or the environment; its score is the average reward
of the participants the agent controlled.

Agents are Python files (.py) defining a StudentAgent class, Go plugins
(.so) exporting StudentAgent, or executables speaking the StudentAgent line
protocol. For .py files --interpreter selects the Python (default python3);
for other scripts it runs files that are not executable themselves.

Settings come from defaults, the --config file, TAGCHECK_* environment
variables and flags, later ones winning.

Exit codes:
  0 - All roles passed
  1 - Usage error, missing file, load failure or failing role`,
		Example:       "  tagcheck submissions/myusername/agent.py\n  tagcheck --interpreter python3.11 --format json agent.py",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(cmd.OutOrStdout(), usageText)
				return &ExitError{
					Code:     ExitFailure,
					Message:  fmt.Sprintf("expected exactly one agent file, got %d arguments", len(args)),
					Reported: true,
				}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitFailure, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, v, args[0])
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")

	flags := cmd.Flags()
	flags.Int(config.KeyEpisodes, defaults.Episodes, "episodes per role")
	flags.Int(config.KeyMaxSteps, defaults.MaxSteps, "step bound per episode")
	flags.Int64(config.KeySeed, defaults.Seed, "seed of the first episode; episode i uses seed+i")
	flags.StringSlice(config.KeyRoles, defaults.Roles, "roles to test, in order")
	flags.String(config.KeyExpectName, defaults.ExpectName, "expected agent file name (warning only; empty disables)")
	flags.String(config.KeyInterpreter, defaults.Interpreter, `Python for .py agents (default python3), or the command that runs other non-executable agent files`)
	flags.Duration(config.KeyActionTimeout, defaults.ActionTimeout, "bound on each GetAction call (0 = none)")
	flags.Duration(config.KeyHandshakeTimeout, defaults.HandshakeTimeout, "time an agent process has to announce itself")
	flags.Int(config.KeyNumGood, defaults.Env.NumGood, "prey in the world")
	flags.Int(config.KeyNumAdversaries, defaults.Env.NumAdversaries, "predators in the world")
	flags.Int(config.KeyNumObstacles, defaults.Env.NumObstacles, "obstacles in the world")
	flags.Int(config.KeyMaxCycles, defaults.Env.MaxCycles, "environment cycle cap")
	flags.Bool(config.KeyContinuousActions, defaults.Env.ContinuousActions, "continuous (5 floats) or discrete (1 index) actions")

	// Errors here mean a flag was registered twice, which is a programming error.
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig layers the config file, environment and flags over defaults.
func loadConfig(opts *RootOptions, v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyOverrides(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
