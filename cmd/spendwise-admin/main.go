package main

import (
	"os"

	"spendwise/internal/cli"
	"spendwise/internal/commands"
)

func main() {
	cli.LoadEnvFile()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
