// Package main provides the entry point for the codequery CLI.
package main

import (
	"os"

	"github.com/codequery-dev/codequery/cmd/codequery/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
