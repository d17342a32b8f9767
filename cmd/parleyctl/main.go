package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/MikeSquared-Agency/parley/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "  ✗ %v\n", err)
		os.Exit(1)
	}
}
