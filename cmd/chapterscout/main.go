// Package main is the entry point for the chapterscout CLI.
package main

import (
	"os"

	"github.com/chapterscout/chapterscout/cmd/chapterscout/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
