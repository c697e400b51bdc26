package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single status invocation.
const DefaultTimeout = 30 * time.Second

// DefaultCommand is the status command run inside every repository.
// Color is forced on so the report can pass git's styling through.
var DefaultCommand = []string{"git", "-c", "color.status=always", "status"}

// DefaultEnv pins git's messages to the untranslated phrases the
// classifier looks for.
var DefaultEnv = []string{"LC_ALL=C", "GIT_TERMINAL_PROMPT=0"}

var (
	ErrEmptyCommand = errors.New("status command is empty")
	ErrTimeout      = errors.New("status command timed out")
)

// Result is the outcome of one status invocation.
type Result struct {
	ExitCode  int    // Process exit code, -1 when the process did not exit normally
	Stdout    string // Raw standard output, ANSI styling included
	Stderr    string
	Succeeded bool // ExitCode == 0 and no invocation error
	TimedOut  bool
	Err       error // Invocation error (missing executable, timeout, cancellation)
}

// Reason describes why a result did not succeed. It is empty for successes.
func (r Result) Reason() string {
	switch {
	case r.Succeeded:
		return ""
	case r.Err != nil:
		return r.Err.Error()
	case strings.TrimSpace(r.Stderr) != "":
		return fmt.Sprintf("exit status %d: %s", r.ExitCode, strings.TrimSpace(r.Stderr))
	default:
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
}

// Provider reports the status of the repository at dir.
type Provider interface {
	Query(ctx context.Context, dir string) Result
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, dir string) Result

func (f ProviderFunc) Query(ctx context.Context, dir string) Result {
	return f(ctx, dir)
}

// ExecProvider runs an external status command in each repository.
type ExecProvider struct {
	Command string
	Args    []string
	Env     []string // Appended to the parent environment
	Timeout time.Duration
}

// NewExecProvider builds a provider from a command line such as DefaultCommand.
func NewExecProvider(command []string, timeout time.Duration) (*ExecProvider, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, ErrEmptyCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecProvider{
		Command: command[0],
		Args:    append([]string(nil), command[1:]...),
		Env:     append([]string(nil), DefaultEnv...),
		Timeout: timeout,
	}, nil
}

// Query runs the command with dir as working directory. A non-zero exit is
// not an error; it is recorded in the Result. When the timeout elapses or ctx
// is cancelled the whole child process group is killed.
func (p *ExecProvider) Query(ctx context.Context, dir string) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.Command, p.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.WaitDelay = time.Second
	configureProcess(cmd)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Succeeded = true
	case ctx.Err() != nil:
		result.ExitCode = -1
		result.Err = fmt.Errorf("status command interrupted: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.ExitCode = -1
		result.TimedOut = true
		result.Err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = fmt.Errorf("running %s: %w", p.Command, err)
	}

	return result
}
