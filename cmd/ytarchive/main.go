package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ytarchive/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode separates operator mistakes (2) and interrupted runs (130) from failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return 2
	default:
		return 1
	}
}
