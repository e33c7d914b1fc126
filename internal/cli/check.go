package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/internal/harness"
	"github.com/roach88/tagcheck/internal/loader"
)

// Error codes owned by the CLI. Load and harness failures carry their own.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Invalid configuration
	ErrCodeInterrupted = "E003" // Run cancelled by a signal
)

// Report is the JSON payload of a check run.
type Report struct {
	RunID     string                `json:"run_id"`
	AgentPath string                `json:"agent_path"`
	Loader    loader.Kind           `json:"loader,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
	Roles     []*harness.RoleResult `json:"roles"`
	Passed    bool                  `json:"passed"`
}

const failedBanner = "\n❌ Tests failed. Please fix the errors and try again."

var successBanner = "\n" + strings.Repeat("=", 60) + "\n✅ All tests passed! Your agent is ready to submit.\n" + strings.Repeat("=", 60)

// runCheck loads the agent at path and tests it in every configured role.
func runCheck(cmd *cobra.Command, opts *RootOptions, v *viper.Viper, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		RunID:     runID,
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})).With("run_id", runID)

	report := &Report{RunID: runID, AgentPath: path, Roles: []*harness.RoleResult{}}
	fail := func(code, message string, err error) error {
		if werr := out.Error(code, message, report); werr != nil {
			return WrapExitError(ExitFailure, "writing output", werr)
		}
		return reportedError(message, err)
	}

	cfg, err := loadConfig(opts, v)
	if err != nil {
		out.Progress("❌ Invalid configuration: %v", err)
		return fail(ErrCodeConfig, fmt.Sprintf("invalid configuration: %v", err), err)
	}
	roles, err := cfg.ParsedRoles()
	if err != nil {
		out.Progress("❌ Invalid configuration: %v", err)
		return fail(ErrCodeConfig, fmt.Sprintf("invalid configuration: %v", err), err)
	}
	logger.Debug("configuration loaded", "episodes", cfg.Episodes, "roles", cfg.Roles, "seed", cfg.Seed)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		out.Progress("❌ File not found: %s", path)
		return fail(loader.ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), err)
	}
	if name := filepath.Base(path); cfg.ExpectName != "" && name != cfg.ExpectName {
		out.Progress("⚠️  Warning: File should be named '%s', got '%s'", cfg.ExpectName, name)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("file should be named %q, got %q", cfg.ExpectName, name))
	}

	out.Progress("Loading agent from: %s", path)
	loaded, err := loader.Load(ctx, path, loader.Options{
		Interpreter:      cfg.Interpreter,
		Stderr:           cmd.ErrOrStderr(),
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           logger,
	})
	if err != nil {
		out.Progress("❌ Failed to load agent: %v", err)
		out.Progress(failedBanner)
		code := ErrCodeGeneric
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		return fail(code, err.Error(), err)
	}
	defer func() {
		if err := loaded.Close(); err != nil {
			logger.Warn("closing agent", "error", err)
		}
	}()
	report.Loader = loaded.Kind
	out.Progress("✓ Agent loaded successfully")
	logger.Debug("agent loaded", "path", loaded.Path, "loader", loaded.Kind)

	progress := &progressObserver{out: out, logger: logger}
	for _, role := range roles {
		out.Progress("\n--- Testing %s agent ---", role.Upper())

		h := harness.New(loaded.Factory,
			harness.WithEpisodes(cfg.Episodes),
			harness.WithMaxSteps(cfg.MaxSteps),
			harness.WithBaseSeed(cfg.Seed),
			harness.WithEnvConfig(cfg.EnvConfig()),
			harness.WithActionTimeout(cfg.ActionTimeout),
			harness.WithObserver(progress),
			harness.WithLogger(logger),
		)
		res, err := h.Run(ctx, role)
		if err != nil {
			code := describeFailure(out, role, err)
			out.Progress(failedBanner)
			return fail(code, err.Error(), err)
		}

		report.Roles = append(report.Roles, res)
		out.Progress("✓ Average reward over %d episodes: %.4f", h.Episodes(), res.AverageReward)
	}

	report.Passed = true
	out.Progress("%s", successBanner)
	return out.Success(report)
}

// describeFailure prints why a role failed and returns its error code.
func describeFailure(out *OutputFormatter, role agent.Role, err error) string {
	var herr *harness.Error
	if !errors.As(err, &herr) {
		if errors.Is(err, context.Canceled) {
			out.Progress("❌ Interrupted while testing %s agent", role)
			return ErrCodeInterrupted
		}
		out.Progress("❌ Error testing %s agent: %v", role, err)
		return ErrCodeGeneric
	}

	switch herr.Kind {
	case harness.ErrInit:
		out.Progress("❌ Failed to initialize %s agent: %v", role, herr.Err)
	case harness.ErrAction:
		out.Progress("❌ Error in get_action: %v", herr.Err)
	case harness.ErrStep:
		out.Progress("❌ Error during environment step: %v", herr.Err)
	}
	out.VerboseLog("%v", herr)
	return herr.Code()
}

// progressObserver prints harness progress.
type progressObserver struct {
	out    *OutputFormatter
	logger *slog.Logger
}

func (p *progressObserver) AgentInitialized(role agent.Role) {
	p.out.Progress("✓ %s agent initialized", role.Title())
}

func (p *progressObserver) EpisodeFinished(role agent.Role, ep harness.EpisodeResult) {
	p.out.VerboseLog("  episode %d (seed %d): reward %.4f over %d steps", ep.Episode, ep.Seed, ep.Reward, ep.Steps)
}

func (p *progressObserver) StepFinished(rec harness.StepRecord) {
	p.logger.Debug("step", "role", rec.Role, "episode", rec.Episode, "step", rec.Step, "rewards", rec.Rewards)
}
