// Package main provides the entry point for the notes-index CLI.
package main

import (
	"os"

	"github.com/gcbaptista/go-notes-index/cmd/notes_index/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
