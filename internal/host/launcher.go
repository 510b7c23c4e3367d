package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/anafis/workspace/internal/domain/window"
	"github.com/anafis/workspace/internal/shared/id"
)

// Process is a running window process.
type Process interface {
	ID() id.ProcessID
	Stop() error
}

// Launcher starts the process that renders a window.
type Launcher interface {
	Launch(ctx context.Context, spec window.Spec) (Process, error)
}

// Environment passed to launched window processes.
const (
	EnvShellURL    = "WORKSPACE_SHELL_URL"
	EnvWindowLabel = "WORKSPACE_WINDOW_LABEL"
	EnvWindowURL   = "WORKSPACE_WINDOW_URL"
)

// ExecLauncher runs one OS process per window. The window's label, boot URL
// and geometry are passed as flags, the shell address through the
// environment.
type ExecLauncher struct {
	command  string
	args     []string
	shellURL string
	logger   *zap.Logger
}

// NewExecLauncher creates a launcher for command.
func NewExecLauncher(command string, args []string, shellURL string, logger *zap.Logger) *ExecLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecLauncher{command: command, args: args, shellURL: shellURL, logger: logger}
}

// Args returns the command line for spec.
func (l *ExecLauncher) Args(spec window.Spec) []string {
	args := append([]string{}, l.args...)
	return append(args,
		"--label", spec.Label.String(),
		"--url", spec.URL,
		"--title", spec.Title,
		"--x", strconv.Itoa(spec.Geometry.X),
		"--y", strconv.Itoa(spec.Geometry.Y),
		"--width", strconv.Itoa(spec.Geometry.Width),
		"--height", strconv.Itoa(spec.Geometry.Height),
		"--always-on-top="+strconv.FormatBool(spec.AlwaysOnTop),
	)
}

// Launch starts the process. The process outlives ctx, which only bounds
// the start itself.
func (l *ExecLauncher) Launch(ctx context.Context, spec window.Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(l.command, l.Args(spec)...)
	cmd.Env = append(os.Environ(),
		EnvShellURL+"="+l.shellURL,
		EnvWindowLabel+"="+spec.Label.String(),
		EnvWindowURL+"="+spec.URL,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start window process: %w", err)
	}

	p := &execProcess{id: id.NewProcessID(), cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		close(p.done)
		l.logger.Info("Window process exited",
			zap.String("window_id", spec.Label.String()),
			zap.String("process_id", string(p.id)),
			zap.Error(err),
		)
	}()

	l.logger.Info("Window process started",
		zap.String("window_id", spec.Label.String()),
		zap.String("process_id", string(p.id)),
		zap.Int("pid", cmd.Process.Pid),
	)
	return p, nil
}

type execProcess struct {
	id   id.ProcessID
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) ID() id.ProcessID { return p.id }

// Stop kills the process unless it already exited.
func (p *execProcess) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop window process: %w", err)
	}
	return nil
}

// NopLauncher starts nothing. It is used when windows are opened by an
// embedding runtime that only needs the shell for IPC, and in tests.
type NopLauncher struct {
	mu       sync.Mutex
	launched []window.Spec
	err      error
}

// Fail makes subsequent launches return err.
func (l *NopLauncher) Fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

// Launched returns the specs launched so far.
func (l *NopLauncher) Launched() []window.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]window.Spec(nil), l.launched...)
}

func (l *NopLauncher) Launch(_ context.Context, spec window.Spec) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.launched = append(l.launched, spec)
	return nopProcess(id.NewProcessID()), nil
}

type nopProcess id.ProcessID

func (p nopProcess) ID() id.ProcessID { return id.ProcessID(p) }
func (nopProcess) Stop() error        { return nil }
