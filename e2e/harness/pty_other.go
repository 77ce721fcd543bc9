//go:build windows

package harness

import "context"

// PtyExecutor is unavailable on Windows
type PtyExecutor struct{}

// NewPtyExecutor creates a PtyExecutor
func NewPtyExecutor() *PtyExecutor {
	return &PtyExecutor{}
}

// Name returns "pty"
func (e *PtyExecutor) Name() string {
	return "pty"
}

// Run always fails; use the pipe executor on Windows
func (e *PtyExecutor) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	return nil, NewError(CodeExec, "pty executor is not supported on windows")
}
