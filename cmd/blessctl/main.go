// Package main provides the blessctl CLI.
//
// Usage:
//
//	blessctl [flags] <command> [args]
//
// Commands:
//
//	generate  - Run one three-variant round and print the results
//	models    - List server-side models whose keys are configured
//	examples  - Show the few-shot examples chosen for a request
//
// Configuration is read from the environment and an optional .env file,
// the same way the server reads it.
package main

import (
	"fmt"
	"os"

	"github.com/Conceptual-Machines/blessing-api/cmd/blessctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
