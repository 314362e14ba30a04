// Package main is the entry point for the curvefit command.
package main

import (
	"os"

	"github.com/copyleftdev/curvefit/cmd/curvefit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
