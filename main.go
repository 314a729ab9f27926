package main

import (
	"os"

	"github.com/agentdeck/agentctl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
