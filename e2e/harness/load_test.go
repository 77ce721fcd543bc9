package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarios = `
scenarios:
  - name: empty
    description: fresh repository
    repositories: [".git", "subdir"]
    files:
      README: hello
    config:
      media.url: http://foo/bar
    commands:
      - run: version
        expect: "git-media v{{.Version}}"
      - run: path add *.gif
        expect: Adding path *.gif
        verify:
          - type: file_content
            path: .gitattributes
            content: "*.gif filter=media -crlf"
            reason: .gitattributes not set
          - type: command_output
            run: path
            expect: |
              Listing paths
                  *.gif (.gitattributes)
      - run: init
        expect: |
          Installing clean filter
          Installing smudge filter
          git media initialized
        verify:
          - type: store_line_count
            line: filter.media.clean=git media clean %f
            count: 1
          - type: store_prefix_count
            prefix: filter.media.
            count: 0
  - name: empty
    commands:
      - run: path
        expect: Listing paths
`

func TestParseScenarios(t *testing.T) {
	scenarios, err := ParseScenarios([]byte(validScenarios))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	s := scenarios[0]
	assert.Equal(t, "empty", s.Name)
	assert.Equal(t, "fresh repository", s.Description)
	assert.Equal(t, []string{".git", "subdir"}, s.Repositories)
	assert.Equal(t, map[string]string{"README": "hello"}, s.Files)
	assert.Equal(t, map[string]string{"media.url": "http://foo/bar"}, s.GitConfig)
	require.Len(t, s.Commands, 3)

	add := s.Commands[1]
	assert.Equal(t, "path add *.gif", add.Command)
	require.Len(t, add.Verifiers, 2)
	assert.Equal(t, FileContent{Path: ".gitattributes", Want: "*.gif filter=media -crlf", Reason: ".gitattributes not set"}, add.Verifiers[0])
	assert.Equal(t, CommandOutput{Command: "path", Want: "Listing paths\n    *.gif (.gitattributes)\n"}, add.Verifiers[1])

	initCmd := s.Commands[2]
	assert.Equal(t, "Installing clean filter\nInstalling smudge filter\ngit media initialized\n", initCmd.Expected)
	assert.Equal(t, []Verifier{
		StoreLineCount{Line: "filter.media.clean=git media clean %f", Count: 1},
		StorePrefixCount{Prefix: "filter.media.", Count: 0},
	}, initCmd.Verifiers)

	assert.Equal(t, "empty", scenarios[1].Name, "names may repeat")
}

func TestParseScenariosErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty document",
			yaml:    "scenarios: []\n",
			wantErr: "scenarios list is required",
		},
		{
			name:    "unknown field",
			yaml:    "scenarios:\n  - name: a\n    comands: []\n",
			wantErr: "field comands not found",
		},
		{
			name:    "missing run",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - expect: x\n",
			wantErr: "scenarios[0]: commands[0]: run is required",
		},
		{
			name:    "no commands",
			yaml:    "scenarios:\n  - name: a\n",
			wantErr: `scenario "a" has no commands`,
		},
		{
			name:    "missing count",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: init\n        verify:\n          - type: store_prefix_count\n            prefix: filter.\n",
			wantErr: "commands[0].verify[0]: count is required for store_prefix_count",
		},
		{
			name:    "negative count",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: init\n        verify:\n          - type: store_line_count\n            line: a=b\n            count: -1\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "unknown verify type",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: init\n        verify:\n          - type: exists\n",
			wantErr: `unknown verify type "exists"`,
		},
		{
			name:    "missing verify type",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: init\n        verify:\n          - path: x\n",
			wantErr: "type is required",
		},
		{
			name:    "file content without path",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: init\n        verify:\n          - type: file_content\n",
			wantErr: "path is required for file_content",
		},
		{
			name:    "bad template",
			yaml:    "scenarios:\n  - name: a\n    commands:\n      - run: version\n        expect: \"{{.Version\"\n",
			wantErr: `invalid expected output for "version"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenarios([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenarios), 0644))

	scenarios, err := LoadScenarios(path)
	require.NoError(t, err)
	assert.Len(t, scenarios, 2)

	_, err = LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scenarios: []\n"), 0644))
	_, err = LoadScenarios(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}
