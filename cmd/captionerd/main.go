package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	loadDotEnv(os.Stderr)
	cmd := newCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
