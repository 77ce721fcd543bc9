package harness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// events records the order of side effects across fakes.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// fakeRepos creates a bare .git directory instead of running git.
type fakeRepos struct {
	events  *events
	initErr error
	config  map[string]string
}

func (r *fakeRepos) InitRepository(ctx context.Context, path string) error {
	if r.events != nil {
		r.events.add("init")
	}
	if r.initErr != nil {
		return r.initErr
	}
	return os.MkdirAll(filepath.Join(path, ".git"), 0755)
}

func (r *fakeRepos) SetConfig(ctx context.Context, path, key, value string) error {
	if r.config == nil {
		r.config = map[string]string{}
	}
	r.config[key] = value
	return nil
}

// memStore is a GlobalStore held in memory.
type memStore struct {
	events *events
	lines  []string
	resets int
}

func (s *memStore) Snapshot(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.lines...), nil
}

func (s *memStore) Reset(ctx context.Context) error {
	if s.events != nil {
		s.events.add("reset")
	}
	s.resets++
	s.lines = nil
	return nil
}

// response is what fakeExecutor returns for one command line.
type response struct {
	out string
	err error
	do  func()
}

// fakeExecutor answers by the joined argument list.
type fakeExecutor struct {
	responses map[string]response
	calls     []Invocation
}

func (e *fakeExecutor) Name() string { return "fake" }

func (e *fakeExecutor) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	e.calls = append(e.calls, inv)
	r, ok := e.responses[strings.Join(inv.Args, " ")]
	if !ok {
		return []byte("unknown command\n"), WrapError(fmt.Errorf("exit status 1"), CodeExit, "unexpected command")
	}
	if r.do != nil {
		r.do()
	}
	return []byte(r.out), r.err
}

// fakeConfig is a Config that needs neither git nor a tool binary.
func fakeConfig(t *testing.T) Config {
	t.Helper()
	tmp, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return Config{
		Version:          "1.0.0",
		TmpDir:           tmp,
		ToolPath:         "/fake/git-media",
		HomeDir:          filepath.Join(tmp, "home"),
		GlobalConfigPath: filepath.Join(tmp, "home", ".gitconfig"),
		Env:              []string{"GIT_CONFIG_NOSYSTEM=1"},
		EnvString:        "GIT_CONFIG_NOSYSTEM=1",
		Timeout:          time.Second,
	}
}

// newFakeFixture creates a fixture backed by fakeRepos and executor.
func newFakeFixture(t *testing.T, executor Executor) *Fixture {
	t.Helper()
	f, err := NewFixture(context.Background(), fakeConfig(t), &fakeRepos{}, executor)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Destroy() })
	return f
}

// requireShellTools skips tests that run git and the shell stand-in.
func requireShellTools(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-in is not supported on windows")
	}
	for _, bin := range []string{"git", "sh"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

// fakeTool copies the git-media stand-in into a temp dir as an executable.
func fakeTool(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "git-media"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "git-media")
	require.NoError(t, os.WriteFile(path, data, 0755))
	return path
}

// hostEnv exposes only PATH from the host, like a clean CI shell.
func hostEnv(extra map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := extra[key]; ok {
			return v
		}
		if key == "PATH" {
			return os.Getenv("PATH")
		}
		return ""
	}
}

// shellConfig resolves a real Config around the stand-in tool.
func shellConfig(t *testing.T) Config {
	t.Helper()
	requireShellTools(t)
	cfg, err := Resolve(hostEnv(nil), Overrides{
		ToolPath: fakeTool(t),
		TmpDir:   t.TempDir(),
		Timeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(cfg.HomeDir) })
	return cfg
}
