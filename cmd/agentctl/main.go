package main

import (
	"os"

	"github.com/agentdeck/agentctl/internal/cli"
	"github.com/agentdeck/agentctl/internal/version"
)

// Set by goreleaser.
var (
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	version.SetBuildInfo(commit, date, builtBy)
	os.Exit(cli.Execute())
}
