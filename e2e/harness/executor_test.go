package harness

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// script writes an executable shell script and returns its path.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestPipeExecutor(t *testing.T) {
	requireSh(t)
	tool := script(t, `echo "out $1"; echo "err $2" >&2; pwd -P; echo "v=$MARKER"`)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	out, err := NewPipeExecutor().Run(context.Background(), Invocation{
		Path:    tool,
		Args:    []string{"a", "b"},
		Dir:     dir,
		Env:     []string{"PATH=" + os.Getenv("PATH"), "MARKER=x"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "out a\nerr b\n"+dir+"\nv=x\n", string(out))
}

func TestPipeExecutorErrors(t *testing.T) {
	requireSh(t)

	tests := []struct {
		name    string
		body    string
		path    string
		timeout time.Duration
		code    string
		output  string
	}{
		{
			name:   "non-zero exit",
			body:   "echo boom; exit 3",
			code:   CodeExit,
			output: "boom\n",
		},
		{
			name:    "timeout",
			body:    "echo started; exec sleep 10",
			timeout: 200 * time.Millisecond,
			code:    CodeTimeout,
			output:  "started\n",
		},
		{
			name: "cannot start",
			path: "/nonexistent/git-media",
			code: CodeExec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = script(t, tt.body)
			}
			timeout := tt.timeout
			if timeout == 0 {
				timeout = 5 * time.Second
			}

			start := time.Now()
			out, err := NewPipeExecutor().Run(context.Background(), Invocation{
				Path:    path,
				Env:     []string{"PATH=" + os.Getenv("PATH")},
				Timeout: timeout,
			})
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.True(t, IsExecError(err))
			assert.Equal(t, tt.output, string(out))
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestPipeExecutorCancelled(t *testing.T) {
	requireSh(t)
	tool := script(t, "exec sleep 10")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := NewPipeExecutor().Run(ctx, Invocation{Path: tool, Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Equal(t, CodeExec, ErrorCode(err))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestPtyExecutor(t *testing.T) {
	requireSh(t)
	tool := script(t, `echo "line one"; echo "line two"; if [ -t 1 ]; then echo tty; fi`)

	out, err := NewPtyExecutor().Run(context.Background(), Invocation{
		Path:    tool,
		Env:     []string{"PATH=" + os.Getenv("PATH")},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\ntty", Normalize(string(out)))
}

func TestPtyExecutorExit(t *testing.T) {
	requireSh(t)
	tool := script(t, "echo boom; exit 3")

	out, err := NewPtyExecutor().Run(context.Background(), Invocation{Path: tool, Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Equal(t, CodeExit, ErrorCode(err))
	assert.Equal(t, "boom", Normalize(string(out)))
}

func TestExecutorByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "pipe"},
		{name: "pipe", want: "pipe"},
		{name: " PTY ", want: "pty"},
		{name: "ssh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ExecutorByName(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}
}

func TestInvocationString(t *testing.T) {
	assert.Equal(t, "/bin/git-media", Invocation{Path: "/bin/git-media"}.String())
	assert.Equal(t, "/bin/git-media path add *.gif",
		Invocation{Path: "/bin/git-media", Args: []string{"path", "add", "*.gif"}}.String())
}
