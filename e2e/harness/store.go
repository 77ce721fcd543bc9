package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GlobalStore is the settings location outside any repository that the
// tool writes to, such as the global git config.
type GlobalStore interface {
	// Snapshot returns the store as key=value lines.
	Snapshot(ctx context.Context) ([]string, error)

	// Reset returns the store to an empty state.
	Reset(ctx context.Context) error
}

// GitConfigStore is a global git config file scoped to one run.
type GitConfigStore struct {
	Path string
	Env  []string
}

// NewGitConfigStore returns the store behind cfg.GlobalConfigPath.
func NewGitConfigStore(cfg Config) *GitConfigStore {
	return &GitConfigStore{Path: cfg.GlobalConfigPath, Env: cfg.Env}
}

// Snapshot lists every entry with git config --list. A missing file is
// an empty store.
func (s *GitConfigStore) Snapshot(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(err, CodeStore, "failed to stat global config")
	}
	if info.Size() == 0 {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, "git", "config", "--file", s.Path, "--list")
	cmd.Env = s.Env
	output, err := cmd.Output()
	if err != nil {
		return nil, WrapError(err, CodeStore, fmt.Sprintf("git config --list %s", s.Path))
	}
	return splitLines(string(output)), nil
}

// Reset truncates the config file, creating it and its directory if needed.
func (s *GitConfigStore) Reset(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return WrapError(err, CodeStore, "failed to create global config dir")
	}
	if err := os.WriteFile(s.Path, nil, 0644); err != nil {
		return WrapError(err, CodeStore, "failed to reset global config")
	}
	return nil
}

// CountLine counts lines equal to line.
func CountLine(lines []string, line string) int {
	n := 0
	for _, l := range lines {
		if l == line {
			n++
		}
	}
	return n
}

// CountPrefix counts lines whose key starts with prefix.
func CountPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimRight(l, "\r"); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
