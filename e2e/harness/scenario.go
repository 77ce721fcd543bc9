package harness

import (
	"errors"
	"fmt"
	"sort"
)

// State tracks a scenario through a run
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scenario is a named, ordered list of command assertions sharing one
// fixture. Later commands rely on the side effects of earlier ones, so
// they always run in declaration order. Names are labels, not keys.
type Scenario struct {
	Name        string
	Description string

	// Files are written into the fixture before the first command.
	Files map[string]string
	// GitConfig is applied to the fixture repository before the first command.
	GitConfig map[string]string
	// Repositories are nested locations registered in order; the last one
	// is the working directory for every command.
	Repositories []string

	Commands []CommandAssertion
}

// Builder accumulates a Scenario
type Builder struct {
	s    Scenario
	errs []error
}

// NewScenario starts a scenario named name
func NewScenario(name string) *Builder {
	return &Builder{s: Scenario{Name: name}}
}

// Describe sets the description
func (b *Builder) Describe(description string) *Builder {
	b.s.Description = description
	return b
}

// Repository registers a nested repository location
func (b *Builder) Repository(path string) *Builder {
	b.s.Repositories = append(b.s.Repositories, path)
	return b
}

// File seeds a file into the fixture
func (b *Builder) File(path, content string) *Builder {
	if b.s.Files == nil {
		b.s.Files = map[string]string{}
	}
	b.s.Files[path] = content
	return b
}

// GitConfig sets a repository-local config value in the fixture
func (b *Builder) GitConfig(key, value string) *Builder {
	if b.s.GitConfig == nil {
		b.s.GitConfig = map[string]string{}
	}
	b.s.GitConfig[key] = value
	return b
}

// Command appends a command, its expected output and optional verifiers
func (b *Builder) Command(command, expected string, verifiers ...Verifier) *Builder {
	ca, err := NewCommandAssertion(command, expected, verifiers...)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.s.Commands = append(b.s.Commands, ca)
	return b
}

// Build returns the scenario or the first declaration error
func (b *Builder) Build() (Scenario, error) {
	if b.s.Name == "" {
		b.errs = append(b.errs, NewError(CodeScenario, "scenario name is required"))
	}
	if len(b.s.Commands) == 0 && len(b.errs) == 0 {
		b.errs = append(b.errs, NewError(CodeScenario, fmt.Sprintf("scenario %q has no commands", b.s.Name)))
	}
	if len(b.errs) > 0 {
		return Scenario{}, errors.Join(b.errs...)
	}
	return b.s, nil
}

// MustBuild is Build for scenarios declared in code
func (b *Builder) MustBuild() Scenario {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
