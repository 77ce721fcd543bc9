// Package scenarios declares the integration scenarios run against git-media.
package scenarios

import (
	"github.com/timvw/mediaharness/e2e/harness"
)

// DefaultEndpoint is reported by config when no media.url is set.
const DefaultEndpoint = "https://example.com/git/media.git/info/media"

// configDump is the config output after the Endpoint line.
const configDump = `LocalWorkingDir={{.Root}}
LocalGitDir={{.GitDir}}
LocalMediaDir={{.MediaDir}}
TempDir={{join .TmpDir "git-media"}}
{{.Env}}
`

func configExpectation(endpoint string) string {
	return "Endpoint=" + endpoint + "\n" + configDump
}

// All returns the built-in scenarios in run order.
func All() []harness.Scenario {
	return []harness.Scenario{
		Empty(),
		PathAdd(),
		ConfigMediaURL(),
	}
}

// Empty runs the basic commands from a nested directory of a fresh
// repository and checks that init installs exactly two global filters.
func Empty() harness.Scenario {
	return harness.NewScenario("empty").
		Describe("version, config and init from a nested directory").
		Repository(".git").
		Repository("subdir").
		Command("version", "git-media v{{.Version}}").
		Command("version -comics", `git-media v{{.Version}}
Nothing may see Gah Lak Tus and survive.
`).
		Command("config", configExpectation(DefaultEndpoint)).
		Command("init", "Installing clean filter\nInstalling smudge filter\ngit media initialized",
			harness.StoreLineCount{
				Line:   "filter.media.clean=git media clean %f",
				Count:  1,
				Reason: "bad filter.media.clean configs",
			},
			harness.StoreLineCount{
				Line:   "filter.media.smudge=git media smudge %f",
				Count:  1,
				Reason: "bad filter.media.smudge configs",
			},
			harness.StorePrefixCount{
				Prefix: "filter.media.",
				Count:  2,
				Reason: "bad filter.media configs",
			},
		).
		MustBuild()
}

// PathAdd tracks *.gif and checks both .gitattributes and the path listing.
func PathAdd() harness.Scenario {
	listing := "Listing paths\n    *.gif (.gitattributes)"

	return harness.NewScenario("empty").
		Describe("path add writes .gitattributes and path lists it").
		Command("path add *.gif", "Adding path *.gif",
			harness.FileContent{
				Path:   ".gitattributes",
				Want:   "*.gif filter=media -crlf",
				Reason: ".gitattributes not set",
			},
			harness.CommandOutput{
				Command: "path",
				Want:    listing,
				Reason:  ".git path not shown by 'git media path'",
			},
		).
		Command("path", listing).
		MustBuild()
}

// ConfigMediaURL checks that a repository-local media.url replaces the
// default endpoint.
func ConfigMediaURL() harness.Scenario {
	return harness.NewScenario("config_media_url").
		Describe("config reports the configured media.url").
		GitConfig("media.url", "http://foo/bar").
		Command("config", configExpectation("http://foo/bar")).
		MustBuild()
}
