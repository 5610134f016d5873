package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/stanzaconf/internal/cli"
)

// main is the entrypoint for the stanzaconf tool.
func main() {
	// Minimal logger until the command configures the real one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the command execution for easier testing and error
// handling.
func run(out io.Writer, args []string) error {
	root := cli.New(out)
	root.SetOut(out)
	root.SetErr(os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
