package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/tagcheck/internal/agent"
	"github.com/roach88/tagcheck/pkg/studentagent"
)

// closeGrace is how long a process agent gets to exit after its stdin is
// closed before it is killed.
const closeGrace = 2 * time.Second

var errProcessClosed = errors.New("agent process closed")

// process is a running agent executable. Requests are serialized; the
// stdout reader goroutine hands lines to whichever call is waiting.
type process struct {
	path   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	lines   chan []byte
	scanErr error
	quit    chan struct{}
	exited  chan struct{}
	waitErr error

	mu     sync.Mutex
	nextID uint64
	broken error

	closeOnce sync.Once
}

// processCommand returns the command line that runs the agent file at abs.
func processCommand(path, abs string, info os.FileInfo, interpreter string) ([]string, error) {
	switch {
	case interpreter != "":
		return append(strings.Fields(interpreter), abs), nil
	case info.Mode().Perm()&0o111 != 0:
		return []string{abs}, nil
	}
	return nil, loadErr(ErrCodeUnloadable, path, nil,
		"%s is not executable; make it executable or set an interpreter", path)
}

func startProcess(ctx context.Context, path, abs string, kind Kind, argv []string, opts Options) (*Loaded, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(abs)
	cmd.Stderr = opts.Stderr
	cmd.WaitDelay = closeGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, loadErr(ErrCodeUnloadable, path, err, "cannot start %s", path)
	}
	// An io.Pipe rather than StdoutPipe: Wait then finishes copying stdout
	// before it returns, so the reader sees every line before EOF.
	stdoutR, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		return nil, loadErr(ErrCodeUnloadable, path, err, "cannot start %s", path)
	}

	p := &process{
		path:   abs,
		cmd:    cmd,
		stdin:  stdin,
		logger: opts.Logger.With("agent_pid", cmd.Process.Pid),
		lines:  make(chan []byte),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.readLines(stdoutR)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
		_ = stdoutW.Close()
	}()

	if err := p.handshake(ctx, path, opts.HandshakeTimeout); err != nil {
		p.kill()
		_ = p.Close()
		return nil, err
	}
	p.logger.Debug("agent process ready", "path", abs)

	return &Loaded{
		Path:    abs,
		Kind:    kind,
		Factory: p.newAgent,
		close:   p.Close,
	}, nil
}

func (p *process) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), studentagent.MaxLineSize)
scan:
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case p.lines <- append([]byte(nil), line...):
		case <-p.quit:
			break scan
		}
	}
	p.scanErr = scanner.Err()
	close(p.lines)
	// Keep draining so the process never blocks on a full stdout.
	_, _ = io.Copy(io.Discard, r)
}

// exitDetail describes why the stdout stream ended.
func (p *process) exitDetail() string {
	if p.scanErr != nil {
		return fmt.Sprintf("reading output: %v", p.scanErr)
	}
	select {
	case <-p.exited:
	case <-time.After(closeGrace):
		return "output closed"
	}
	if p.waitErr != nil {
		return p.waitErr.Error()
	}
	return "exit status 0"
}

func (p *process) handshake(ctx context.Context, path string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var line []byte
	select {
	case l, ok := <-p.lines:
		if !ok {
			return loadErr(ErrCodeUnloadable, path, nil, "agent process exited before handshake (%s)", p.exitDetail())
		}
		line = l
	case <-timer.C:
		return loadErr(ErrCodeUnloadable, path, nil, "agent process sent no handshake within %s", timeout)
	case <-ctx.Done():
		return loadErr(ErrCodeUnloadable, path, ctx.Err(), "loading %s interrupted", path)
	}

	var hello studentagent.Hello
	if err := json.Unmarshal(line, &hello); err != nil {
		return loadErr(ErrCodeUnloadable, path, err, "malformed handshake %q", truncate(line, 80))
	}
	if hello.Protocol != studentagent.ProtocolVersion {
		return loadErr(ErrCodeUnloadable, path, nil,
			"unsupported protocol version %d (want %d)", hello.Protocol, studentagent.ProtocolVersion)
	}
	if hello.Error != "" {
		return loadErr(ErrCodeUnloadable, path, nil, "cannot import %s: %s", path, hello.Error)
	}
	if !hello.Exposes(studentagent.ExportName) {
		return loadErr(ErrCodeMissingExport, path, nil,
			"%s does not expose %s (exports: %v)", path, studentagent.ExportName, hello.Exports)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// call sends req and waits for its response. A response carrying an error
// leaves the process usable; transport failures, cancellation and timeouts
// kill it and fail every later call.
func (p *process) call(ctx context.Context, req studentagent.Request) (*studentagent.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.broken != nil {
		return nil, p.broken
	}

	p.nextID++
	req.ID = p.nextID
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Op, err)
	}
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return nil, p.fail(fmt.Errorf("agent process not accepting requests: %w", err))
	}

	select {
	case line, ok := <-p.lines:
		if !ok {
			return nil, p.fail(fmt.Errorf("agent process exited (%s)", p.exitDetail()))
		}
		var resp studentagent.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, p.fail(fmt.Errorf("malformed response %q: %w", truncate(line, 80), err))
		}
		// Calls are serialized, so an untagged response answers req.
		if resp.ID != 0 && resp.ID != req.ID {
			return nil, p.fail(fmt.Errorf("response id %d does not match request %d", resp.ID, req.ID))
		}
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return &resp, nil
	case <-ctx.Done():
		return nil, p.fail(ctx.Err())
	}
}

// fail marks the process unusable and kills it. Callers hold p.mu.
func (p *process) fail(err error) error {
	p.broken = err
	p.kill()
	p.logger.Debug("agent process failed", "error", err)
	return err
}

func (p *process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Close asks the process to exit by closing its stdin and kills it if it
// does not. It is safe to call more than once.
func (p *process) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(closeGrace):
			p.kill()
			<-p.exited
		}
		p.logger.Debug("agent process stopped", "wait", p.waitErr)

		p.mu.Lock()
		if p.broken == nil {
			p.broken = errProcessClosed
		}
		p.mu.Unlock()
	})
	return nil
}

func (p *process) newAgent(ctx context.Context, role agent.Role) (agent.Agent, error) {
	resp, err := p.call(ctx, studentagent.Request{Op: studentagent.OpNew, Role: string(role)})
	if err != nil {
		return nil, err
	}
	return &processAgent{proc: p, instance: resp.Instance}, nil
}

// processAgent is one StudentAgent instance living in an agent process.
type processAgent struct {
	proc     *process
	instance int
}

func (a *processAgent) GetAction(ctx context.Context, observation []float64, participantID string) ([]float64, error) {
	resp, err := a.proc.call(ctx, studentagent.Request{
		Op:            studentagent.OpAct,
		Instance:      a.instance,
		ParticipantID: participantID,
		Observation:   observation,
	})
	if err != nil {
		return nil, err
	}
	return resp.Action, nil
}

// Close frees the instance in the agent process.
func (a *processAgent) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
	defer cancel()

	a.proc.mu.Lock()
	broken := a.proc.broken
	a.proc.mu.Unlock()
	if broken != nil {
		return nil
	}

	_, err := a.proc.call(ctx, studentagent.Request{Op: studentagent.OpFree, Instance: a.instance})
	return err
}
