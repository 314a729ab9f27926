// Package output decides how interactive the CLI output may be and provides
// the progress spinner.
package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode is the output style.
type OutputMode int

const (
	// OutputModeInteractive allows spinners, colours and redrawing.
	OutputModeInteractive OutputMode = iota
	// OutputModeCI is plain line oriented output.
	OutputModeCI
)

var ciEnvVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"AGENTCTL_CI_MODE",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"JENKINS_URL",
	"BUILDKITE",
	"TEAMCITY_VERSION",
	"BITBUCKET_PIPELINES",
}

// IsCI reports a CI environment or a stdout that is not a terminal.
func IsCI() bool {
	for _, name := range ciEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return !IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectMode returns OutputModeCI when IsCI.
func DetectMode() OutputMode {
	if IsCI() {
		return OutputModeCI
	}
	return OutputModeInteractive
}
