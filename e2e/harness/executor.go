package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Invocation is one launch of the tool under test
type Invocation struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Path
	}
	return inv.Path + " " + strings.Join(inv.Args, " ")
}

// Executor runs the tool under test and returns its combined output
type Executor interface {
	// Name identifies the executor in logs
	Name() string

	// Run blocks until the process exits or its timeout expires. Output
	// captured so far is returned alongside any error.
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// waitDelay bounds how long Wait blocks on I/O after the process is killed
const waitDelay = 2 * time.Second

// PipeExecutor runs the tool with stdout and stderr sharing one buffer
type PipeExecutor struct{}

// NewPipeExecutor creates a new pipe executor
func NewPipeExecutor() *PipeExecutor {
	return &PipeExecutor{}
}

// Name returns "pipe"
func (e *PipeExecutor) Name() string {
	return "pipe"
}

// Run executes inv and captures combined output
func (e *PipeExecutor) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, inv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, WrapError(err, CodeExec, fmt.Sprintf("failed to start %s", inv.Path))
	}
	err := cmd.Wait()
	return out.Bytes(), classifyExit(ctx, inv, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classifyExit maps the result of Wait onto the harness error codes
func classifyExit(ctx context.Context, inv Invocation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return WrapError(ctx.Err(), CodeTimeout, fmt.Sprintf("%q timed out after %s", inv.String(), inv.Timeout))
	}
	if ctx.Err() != nil {
		return WrapError(ctx.Err(), CodeExec, fmt.Sprintf("%q cancelled", inv.String()))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return WrapError(err, CodeExit, fmt.Sprintf("%q exited with status %d", inv.String(), exitErr.ExitCode()))
	}
	return WrapError(err, CodeExec, fmt.Sprintf("%q failed", inv.String()))
}

// ExecutorByName returns the executor registered under name
func ExecutorByName(name string) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pipe":
		return NewPipeExecutor(), nil
	case "pty":
		return NewPtyExecutor(), nil
	default:
		return nil, NewError(CodeConfig, fmt.Sprintf("unknown executor %q (want pipe or pty)", name))
	}
}
