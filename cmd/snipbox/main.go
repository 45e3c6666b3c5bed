// Package main provides the entry point for snipbox, the snippet-box CLI.
//
// snipbox runs one command against the local store and exits, or opens the
// interactive palette with `snipbox palette`.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/snippet-box/internal/cli/command"
)

func main() {
	app := command.App(os.Stdin, os.Stdout, os.Stderr)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
