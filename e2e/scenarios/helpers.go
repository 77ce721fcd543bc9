package scenarios

import (
	"os"
	"strings"

	"github.com/timvw/mediaharness/e2e/harness"
)

// EnvExecutor names the executor used when none is given explicitly.
const EnvExecutor = "E2E_EXECUTOR"

// ExecutorFromEnv returns the executor named by E2E_EXECUTOR, defaulting to
// the pipe executor.
func ExecutorFromEnv() (harness.Executor, error) {
	return harness.ExecutorByName(strings.TrimSpace(os.Getenv(EnvExecutor)))
}
