// Package loader resolves an agent file to a StudentAgent factory.
//
// Go plugins (.so) are opened in-process. Python files (.py) are imported by
// a bundled runner. Every other file is started as a child process speaking
// the line protocol of package studentagent. One process serves every agent
// created from the loaded file.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/pkg/studentagent"
)

// Error codes for load failures.
const (
	ErrCodeNotFound      = "E005"
	ErrCodeUnloadable    = "E201"
	ErrCodeMissingExport = "E202"
	ErrCodeBadSymbol     = "E203"
)

// DefaultHandshakeTimeout bounds how long a process agent may take to
// announce itself.
const DefaultHandshakeTimeout = 10 * time.Second

// Kind is the loading strategy used for a file.
type Kind string

const (
	KindPlugin  Kind = "plugin"
	KindProcess Kind = "process"
	KindPython  Kind = "python"
)

// LoadError reports why an agent file could not be turned into a factory.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadErr(code, path string, err error, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Path: path, Message: fmt.Sprintf(format, args...), Err: err}
}

// Options configures Load.
type Options struct {
	// Interpreter runs non-executable files, e.g. "node". It is split on
	// white space and the agent path is appended. For .py files it names the
	// Python that runs the bundled runner, python3 by default.
	Interpreter string

	// Stderr receives a process agent's standard error. Defaults to os.Stderr.
	Stderr io.Writer

	// HandshakeTimeout defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Loaded is a resolved agent file.
type Loaded struct {
	Path    string
	Kind    Kind
	Factory agent.Factory

	close func() error
}

// Close releases the loaded file. Plugins cannot be unloaded, so only process
// agents have anything to release.
func (l *Loaded) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// Load resolves path to a StudentAgent factory.
func Load(ctx context.Context, path string, opts Options) (*Loaded, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, loadErr(ErrCodeNotFound, path, nil, "agent file not found: %s", path)
	}
	if err != nil {
		return nil, loadErr(ErrCodeUnloadable, path, err, "cannot access %s", path)
	}
	if info.IsDir() {
		return nil, loadErr(ErrCodeUnloadable, path, nil, "%s is a directory", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, loadErr(ErrCodeUnloadable, path, err, "cannot resolve %s", path)
	}

	switch filepath.Ext(abs) {
	case ".so":
		opts.Logger.Debug("loading plugin", "path", abs, "export", studentagent.ExportName)
		return loadPlugin(path, abs)
	case ".py":
		opts.Logger.Debug("starting python runner", "path", abs, "python", pythonBinary(opts.Interpreter))
		return startProcess(ctx, path, abs, KindPython, pythonCommand(opts.Interpreter, abs), opts)
	}

	argv, err := processCommand(path, abs, info, opts.Interpreter)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("starting agent process", "path", abs, "interpreter", opts.Interpreter)
	return startProcess(ctx, path, abs, KindProcess, argv, opts)
}
