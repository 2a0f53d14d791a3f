// Package main is the mpcompat command: validate patch descriptors, run
// lockstep scenarios, compare desync journals and preview rewrites.
package main

import (
	"fmt"
	"os"

	"github.com/T6751/Multiplayer-Compatibility/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
