// Package main is the entry point for the alerts-engine.
package main

import (
	"os"

	"github.com/langcorps/alerts-engine/cmd/alerts-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
