package harness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	gitExt       = ".git"
	gitPtrPrefix = "gitdir: "
)

// RepoInitializer builds the repository inside a fixture
type RepoInitializer interface {
	// InitRepository creates an empty repository at path.
	InitRepository(ctx context.Context, path string) error

	// SetConfig writes a repository-local config value.
	SetConfig(ctx context.Context, path, key, value string) error
}

// GitRepo drives the git binary with a fixed environment
type GitRepo struct {
	Env []string
}

// NewGitRepo returns a GitRepo that runs git with env
func NewGitRepo(env []string) *GitRepo {
	return &GitRepo{Env: env}
}

// InitRepository runs git init in path
func (g *GitRepo) InitRepository(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create repo dir: %w", err)
	}
	return g.run(ctx, path, "init", "-q")
}

// SetConfig runs git config key value in path
func (g *GitRepo) SetConfig(ctx context.Context, path, key, value string) error {
	return g.run(ctx, path, "config", key, value)
}

// run executes a git command in dir
func (g *GitRepo) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = g.Env
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v failed: %w\nOutput: %s", args, err, output)
	}
	return nil
}

// FindRepository returns the working directory and git directory of the
// repository enclosing dir. A path inside the git directory resolves to
// that repository, and a .git file holding a gitdir pointer is followed.
func FindRepository(dir string) (workDir, gitDir string, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}

	for {
		if filepath.Base(dir) == gitExt {
			return filepath.Dir(dir), dir, nil
		}

		candidate := filepath.Join(dir, gitExt)
		if info, statErr := os.Stat(candidate); statErr == nil {
			if info.IsDir() {
				return dir, candidate, nil
			}
			pointed, ptrErr := readGitPointer(candidate)
			if ptrErr != nil {
				return "", "", ptrErr
			}
			return dir, pointed, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("git repository not found")
		}
		dir = parent
	}
}

// readGitPointer resolves a "gitdir: <path>" file relative to its location
func readGitPointer(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	contents := strings.TrimSpace(string(data))
	if !strings.HasPrefix(contents, gitPtrPrefix) {
		return "", fmt.Errorf("%s is not a gitdir pointer", file)
	}
	target := strings.TrimSpace(strings.TrimPrefix(contents, gitPtrPrefix))
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(file), target)
	}
	return filepath.Clean(target), nil
}
