// The main package for the smartlink executable.
package main

import (
	"context"
	"os"
)

// main defers all execution to the Cobra CLI.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
