package harness

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Environment variables read by Resolve.
const (
	EnvTool    = "MEDIAHARNESS_TOOL"
	EnvVersion = "MEDIAHARNESS_VERSION"
	EnvTmpDir  = "MEDIAHARNESS_TMPDIR"
	EnvTimeout = "MEDIAHARNESS_TIMEOUT"
)

const (
	// DefaultToolName is looked up on PATH when no binary is configured.
	DefaultToolName = "git-media"
	// DefaultVersion is used when the version cannot be discovered.
	DefaultVersion = "0.3.3"
	// DefaultTimeout bounds a single command.
	DefaultTimeout = 30 * time.Second
)

// Config is the run-wide snapshot used to launch the tool and to build
// expected output. It is resolved once and never modified.
type Config struct {
	Version  string
	TmpDir   string
	ToolPath string

	// HomeDir is a per-run home directory. It holds the global git config
	// so the tool never touches the real user configuration.
	HomeDir          string
	GlobalConfigPath string

	// Env is the complete environment handed to child processes.
	Env []string
	// EnvString is the sorted, newline-joined GIT_ entries of Env.
	EnvString string

	Timeout time.Duration
}

// Overrides take precedence over the environment. Zero values are ignored.
type Overrides struct {
	ToolPath string
	TmpDir   string
	Timeout  time.Duration
}

// Resolve builds a Config from getenv and o. Any error it returns is a
// configuration error; the run cannot proceed without these values.
func Resolve(getenv func(string) string, o Overrides) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	tool, err := resolveTool(getenv, o.ToolPath)
	if err != nil {
		return Config{}, err
	}

	tmp, err := resolveTmpDir(getenv, o.TmpDir)
	if err != nil {
		return Config{}, err
	}

	timeout, err := resolveTimeout(getenv, o.Timeout)
	if err != nil {
		return Config{}, err
	}

	version := getenv(EnvVersion)
	if version == "" {
		version = DefaultVersion
	}

	home := filepath.Join(tmp, "mediaharness-home-"+shortID())
	globalConfig := filepath.Join(home, ".gitconfig")

	env := []string{
		"PATH=" + getenv("PATH"),
		"HOME=" + home,
		"TMPDIR=" + tmp,
		"GIT_CONFIG_GLOBAL=" + globalConfig,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
	}

	return Config{
		Version:          version,
		TmpDir:           tmp,
		ToolPath:         tool,
		HomeDir:          home,
		GlobalConfigPath: globalConfig,
		Env:              env,
		EnvString:        formatEnv(env),
		Timeout:          timeout,
	}, nil
}

func resolveTool(getenv func(string) string, override string) (string, error) {
	tool := override
	if tool == "" {
		tool = getenv(EnvTool)
	}

	if tool != "" {
		info, err := os.Stat(tool)
		if err != nil {
			return "", WrapError(err, CodeConfig, fmt.Sprintf("tool binary %s not found", tool))
		}
		if info.IsDir() {
			return "", NewError(CodeConfig, fmt.Sprintf("tool binary %s is a directory", tool))
		}
		return filepath.Abs(tool)
	}

	path, err := exec.LookPath(DefaultToolName)
	if err != nil {
		return "", WrapError(err, CodeConfig,
			fmt.Sprintf("%s not found in PATH; set %s or pass --tool", DefaultToolName, EnvTool))
	}
	return filepath.Abs(path)
}

func resolveTmpDir(getenv func(string) string, override string) (string, error) {
	tmp := override
	if tmp == "" {
		tmp = getenv(EnvTmpDir)
	}
	if tmp == "" {
		tmp = os.TempDir()
	}
	if tmp == "" {
		return "", NewError(CodeConfig, "no temp directory available")
	}

	// git reports resolved paths, so expected output has to use them too.
	resolved, err := filepath.EvalSymlinks(filepath.Clean(tmp))
	if err != nil {
		return "", WrapError(err, CodeConfig, fmt.Sprintf("temp directory %s", tmp))
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", WrapError(err, CodeConfig, fmt.Sprintf("temp directory %s", tmp))
	}
	if !info.IsDir() {
		return "", NewError(CodeConfig, fmt.Sprintf("temp directory %s is not a directory", tmp))
	}
	return resolved, nil
}

func resolveTimeout(getenv func(string) string, override time.Duration) (time.Duration, error) {
	if override > 0 {
		return override, nil
	}
	raw := getenv(EnvTimeout)
	if raw == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, WrapError(err, CodeConfig, fmt.Sprintf("invalid %s", EnvTimeout))
	}
	if d <= 0 {
		return 0, NewError(CodeConfig, fmt.Sprintf("%s must be positive, got %s", EnvTimeout, raw))
	}
	return d, nil
}

// formatEnv renders the entries the tool echoes back in its config dump.
func formatEnv(env []string) string {
	var lines []string
	for _, e := range env {
		if strings.Contains(e, "GIT_") {
			lines = append(lines, e)
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
