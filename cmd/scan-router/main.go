package main

import (
	"fmt"
	"os"

	"github.com/spherical/scan-router/cmd/scan-router/commands"
)

var (
	version = "1.0.0"
)

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
