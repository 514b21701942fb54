package main

import (
	"os"

	"github.com/voilab/acedao/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
