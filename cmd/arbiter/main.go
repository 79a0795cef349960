package main

import (
	"os"

	"arbiter/cmd/arbiter/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
