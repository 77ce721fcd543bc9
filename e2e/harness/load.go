package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Verify types accepted in scenario files.
const (
	VerifyFileContent      = "file_content"
	VerifyStoreLineCount   = "store_line_count"
	VerifyStorePrefixCount = "store_prefix_count"
	VerifyCommandOutput    = "command_output"
)

// ScenarioFile is the YAML layout of a scenario file.
//
//	scenarios:
//	  - name: empty
//	    repositories: [".git", "subdir"]
//	    commands:
//	      - run: version
//	        expect: "git-media v{{.Version}}"
//	      - run: init
//	        expect: |
//	          Installing clean filter
//	          Installing smudge filter
//	          git media initialized
//	        verify:
//	          - type: store_prefix_count
//	            prefix: filter.media.
//	            count: 2
//	            reason: bad filter.media configs
type ScenarioFile struct {
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

// ScenarioSpec is one scenario in a file.
type ScenarioSpec struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Repositories []string          `yaml:"repositories,omitempty"`
	Files        map[string]string `yaml:"files,omitempty"`
	Config       map[string]string `yaml:"config,omitempty"`
	Commands     []CommandSpec     `yaml:"commands"`
}

// CommandSpec is one command with its expectation.
type CommandSpec struct {
	Run    string       `yaml:"run"`
	Expect string       `yaml:"expect"`
	Verify []VerifySpec `yaml:"verify,omitempty"`
}

// VerifySpec selects a built-in verifier by Type. Fields not used by the
// type must be left empty.
type VerifySpec struct {
	Type    string `yaml:"type"`
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`
	Line    string `yaml:"line,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
	Count   *int   `yaml:"count,omitempty"`
	Run     string `yaml:"run,omitempty"`
	Expect  string `yaml:"expect,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
}

// LoadScenarios reads a scenario file. Unknown fields are rejected so a
// typo cannot silently drop a check.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenarios, err := ParseScenarios(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// ParseScenarios decodes and validates scenario YAML.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var file ScenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, WrapError(err, CodeScenario, "failed to parse YAML")
	}
	if len(file.Scenarios) == 0 {
		return nil, NewError(CodeScenario, "scenarios list is required and must be non-empty")
	}

	scenarios := make([]Scenario, 0, len(file.Scenarios))
	for i, spec := range file.Scenarios {
		s, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("scenarios[%d]: %w", i, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (spec ScenarioSpec) build() (Scenario, error) {
	b := NewScenario(spec.Name).Describe(spec.Description)
	for _, repo := range spec.Repositories {
		b.Repository(repo)
	}
	for _, path := range sortedKeys(spec.Files) {
		b.File(path, spec.Files[path])
	}
	for _, key := range sortedKeys(spec.Config) {
		b.GitConfig(key, spec.Config[key])
	}

	for i, cmd := range spec.Commands {
		if cmd.Run == "" {
			return Scenario{}, fmt.Errorf("commands[%d]: run is required", i)
		}
		verifiers := make([]Verifier, 0, len(cmd.Verify))
		for j, vs := range cmd.Verify {
			v, err := vs.build()
			if err != nil {
				return Scenario{}, fmt.Errorf("commands[%d].verify[%d]: %w", i, j, err)
			}
			verifiers = append(verifiers, v)
		}
		b.Command(cmd.Run, cmd.Expect, verifiers...)
	}

	return b.Build()
}

func (vs VerifySpec) build() (Verifier, error) {
	switch vs.Type {
	case VerifyFileContent:
		if vs.Path == "" {
			return nil, fmt.Errorf("path is required for %s", vs.Type)
		}
		return FileContent{Path: vs.Path, Want: vs.Content, Reason: vs.Reason}, nil
	case VerifyStoreLineCount:
		if vs.Line == "" {
			return nil, fmt.Errorf("line is required for %s", vs.Type)
		}
		count, err := vs.count()
		if err != nil {
			return nil, err
		}
		return StoreLineCount{Line: vs.Line, Count: count, Reason: vs.Reason}, nil
	case VerifyStorePrefixCount:
		if vs.Prefix == "" {
			return nil, fmt.Errorf("prefix is required for %s", vs.Type)
		}
		count, err := vs.count()
		if err != nil {
			return nil, err
		}
		return StorePrefixCount{Prefix: vs.Prefix, Count: count, Reason: vs.Reason}, nil
	case VerifyCommandOutput:
		if vs.Run == "" {
			return nil, fmt.Errorf("run is required for %s", vs.Type)
		}
		return CommandOutput{Command: vs.Run, Want: vs.Expect, Reason: vs.Reason}, nil
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unknown verify type %q", vs.Type)
	}
}

func (vs VerifySpec) count() (int, error) {
	if vs.Count == nil {
		return 0, fmt.Errorf("count is required for %s", vs.Type)
	}
	if *vs.Count < 0 {
		return 0, fmt.Errorf("count must be non-negative for %s", vs.Type)
	}
	return *vs.Count, nil
}
