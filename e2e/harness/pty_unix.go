//go:build !windows

package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
)

// PtyExecutor runs the tool attached to a pseudo-terminal, for tools that
// change their output when stdout is a TTY. The terminal turns "\n" into
// "\r\n"; output normalization folds that back before comparison.
type PtyExecutor struct{}

// NewPtyExecutor creates a new pty executor
func NewPtyExecutor() *PtyExecutor {
	return &PtyExecutor{}
}

// Name returns "pty"
func (e *PtyExecutor) Name() string {
	return "pty"
}

// Run executes inv on a fresh pty and returns everything written to it
func (e *PtyExecutor) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, inv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(append([]string{}, inv.Env...), "TERM=dumb")
	cmd.WaitDelay = waitDelay
	cancelGroup(cmd)

	// Start on a pty
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, WrapError(err, CodeExec, fmt.Sprintf("failed to start %s on a pty", inv.Path))
	}
	defer ptmx.Close()

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		// Reading the master returns EIO once the child side is closed.
		_, _ = io.Copy(&out, ptmx)
		close(done)
	}()

	// Wait for exit, then drain the master
	waitErr := cmd.Wait()

	select {
	case <-done:
	case <-time.After(waitDelay):
		// A grandchild still holds the terminal open.
		_ = ptmx.Close()
		<-done
	}

	return out.Bytes(), classifyExit(ctx, inv, waitErr)
}
