package harness

import (
	"errors"
	"fmt"
)

// Error codes used across the harness.
const (
	CodeConfig   = "CONFIG"
	CodeFixture  = "FIXTURE"
	CodeExec     = "EXEC"
	CodeTimeout  = "TIMEOUT"
	CodeExit     = "EXIT"
	CodeStore    = "STORE"
	CodeScenario = "SCENARIO"
)

// HarnessError is a coded error. The code tells the runner how to treat it.
type HarnessError struct {
	Code    string
	Message string
	Err     error
}

func (e *HarnessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarnessError) Unwrap() error {
	return e.Err
}

// NewError creates a HarnessError without a cause.
func NewError(code, message string) *HarnessError {
	return &HarnessError{Code: code, Message: message}
}

// WrapError creates a HarnessError around err.
func WrapError(err error, code, message string) *HarnessError {
	return &HarnessError{Code: code, Message: message, Err: err}
}

// ErrorCode returns the code of the first HarnessError in err's chain, or "".
func ErrorCode(err error) string {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return ErrorCode(err) == CodeConfig
}

// IsExecError reports whether err came from running the tool under test:
// it could not start, timed out, or exited non-zero.
func IsExecError(err error) bool {
	switch ErrorCode(err) {
	case CodeExec, CodeTimeout, CodeExit:
		return true
	}
	return false
}
