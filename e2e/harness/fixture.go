package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// fixturePrefix names every fixture directory under the temp root
const fixturePrefix = "mediaharness"

// Fixture represents a scenario's working directory with a git repository at its root
type Fixture struct {
	Root string

	cfg          Config
	executor     Executor
	repositories []string
	lastOutput   string
	destroyed    bool
}

// NewFixture creates a new test fixture with a fresh git repository under cfg.TmpDir
func NewFixture(ctx context.Context, cfg Config, repos RepoInitializer, executor Executor) (*Fixture, error) {
	name := fmt.Sprintf("%s-%s-%s", fixturePrefix, time.Now().Format("20060102T150405"), shortID())
	root := filepath.Join(cfg.TmpDir, name)

	// Create fixture dir; an existing one means a name collision
	if err := os.Mkdir(root, 0755); err != nil {
		return nil, WrapError(err, CodeFixture, "failed to create fixture dir")
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		_ = os.RemoveAll(root)
		return nil, WrapError(err, CodeFixture, "failed to resolve fixture dir")
	}

	f := &Fixture{
		Root:     resolved,
		cfg:      cfg,
		executor: executor,
	}

	// Initialize repository
	if err := repos.InitRepository(ctx, f.Root); err != nil {
		_ = f.Destroy()
		return nil, WrapError(err, CodeFixture, "failed to initialize repo")
	}

	return f, nil
}

// Path joins elem onto the fixture root
func (f *Fixture) Path(elem ...string) string {
	return filepath.Join(append([]string{f.Root}, elem...)...)
}

// GitDir is the repository's git directory
func (f *Fixture) GitDir() string {
	return f.Path(gitExt)
}

// MediaDir is where git-media keeps its objects
func (f *Fixture) MediaDir() string {
	return f.Path(gitExt, "media")
}

// Config returns the run configuration the fixture was created with
func (f *Fixture) Config() Config {
	return f.cfg
}

// RegisterRepository records a nested location that must resolve to the
// fixture's repository. Later commands run from the most recent one.
func (f *Fixture) RegisterRepository(path string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = f.Path(path)
	}
	abs = filepath.Clean(abs)

	if !f.contains(abs) {
		return NewError(CodeFixture, fmt.Sprintf("repository %s is outside fixture %s", path, f.Root))
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return WrapError(err, CodeFixture, fmt.Sprintf("failed to create %s", path))
	}

	// Verify it resolves to the fixture
	work, _, err := FindRepository(abs)
	if err != nil {
		return WrapError(err, CodeFixture, fmt.Sprintf("%s is not inside a repository", path))
	}
	if work != f.Root {
		return NewError(CodeFixture, fmt.Sprintf("%s resolves to repository %s, not %s", path, work, f.Root))
	}

	f.repositories = append(f.repositories, abs)
	return nil
}

// Repositories returns the registered locations in registration order
func (f *Fixture) Repositories() []string {
	return append([]string(nil), f.repositories...)
}

// Dir is the working directory for commands
func (f *Fixture) Dir() string {
	if n := len(f.repositories); n > 0 {
		return f.repositories[n-1]
	}
	return f.Root
}

// Exec runs git-media with commandLine and returns its combined output
// minus one trailing newline. Any error is an execution error.
func (f *Fixture) Exec(ctx context.Context, commandLine string) (string, error) {
	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return "", WrapError(err, CodeExec, fmt.Sprintf("invalid command line %q", commandLine))
	}

	inv := Invocation{
		Path:    f.cfg.ToolPath,
		Args:    args,
		Dir:     f.Dir(),
		Env:     f.cfg.Env,
		Timeout: f.cfg.Timeout,
	}

	// Output is kept on error too; the report shows it once, as actual output
	out, err := f.executor.Run(ctx, inv)
	f.lastOutput = trimNewline(string(out))
	return f.lastOutput, err
}

// LastOutput is the output of the most recent Exec
func (f *Fixture) LastOutput() string {
	return f.lastOutput
}

// ReadFile returns the content of a file relative to the root
func (f *Fixture) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(f.Path(rel))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content relative to the root, creating parents
func (f *Fixture) WriteFile(rel, content string) error {
	path := f.Path(rel)
	if !f.contains(path) {
		return NewError(CodeFixture, fmt.Sprintf("file %s is outside fixture %s", rel, f.Root))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// Destroy removes the fixture tree; later calls are no-ops
func (f *Fixture) Destroy() error {
	if f.destroyed {
		return nil
	}
	f.destroyed = true
	if err := os.RemoveAll(f.Root); err != nil {
		return WrapError(err, CodeFixture, "failed to remove fixture dir")
	}
	return nil
}

func (f *Fixture) contains(path string) bool {
	rel, err := filepath.Rel(f.Root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
