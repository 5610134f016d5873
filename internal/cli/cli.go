// Package cli defines the stanzaconf command surface: elaborate a workspace
// unit into a persisted artifact, print one module's structured directive
// list, and merge persisted artifacts into the legacy document.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/stanzaconf/internal/conffile"
	"github.com/vk/stanzaconf/internal/ctxlog"
	"github.com/vk/stanzaconf/internal/elab"
	"github.com/vk/stanzaconf/internal/merge"
	"github.com/vk/stanzaconf/internal/render"
	"github.com/vk/stanzaconf/internal/unitfile"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// New builds the root command. All command output goes to out so tests can
// capture it; logs go to the command's error stream.
func New(out io.Writer) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "stanzaconf",
		Short:         "Compile and merge per-unit configuration for code-intelligence tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := strings.ToLower(logLevel)
			switch level {
			case "debug", "info", "warn", "error":
				// valid
			default:
				return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
			}
			format := strings.ToLower(logFormat)
			if format != "text" && format != "json" {
				return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
			}
			logger := newLogger(level, format, cmd.ErrOrStderr())
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn', or 'error'.")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")

	root.AddCommand(newElaborateCmd(out), newPrintCmd(out), newMergeCmd(out))
	return root
}

// newLogger builds an isolated slog.Logger; it never touches the global
// default.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newElaborateCmd(out io.Writer) *cobra.Command {
	var workspacePath, unit, output, dir string
	var extraSrcDirs []string

	cmd := &cobra.Command{
		Use:   "elaborate",
		Short: "Elaborate one workspace unit into a persisted configuration artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, err := unitfile.Load(ctx, workspacePath)
			if err != nil {
				return err
			}
			d, err := w.Descriptor(ctx, unit)
			if err != nil {
				return err
			}
			a := elab.Elaborate(ctx, d, elab.Options{
				Dir:          dir,
				ExtraSrcDirs: extraSrcDirs,
				Resolver:     w.Resolver(),
			})

			if output == "" {
				output = unit + ".conf"
			}
			if err := conffile.Write(output, a); err != nil {
				return err
			}
			fmt.Fprintln(out, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspacePath, "workspace", "w", "", "Workspace .hcl file or directory.")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Unit to elaborate.")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact output path (default: <unit>.conf).")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory context for relative unit paths.")
	cmd.Flags().StringArrayVar(&extraSrcDirs, "source-dir", nil, "Extra source directory (repeatable).")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newPrintCmd(out io.Writer) *cobra.Command {
	var module string

	cmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Print one module's directive list from a persisted artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := conffile.Read(args[0])
			if err != nil {
				return err
			}
			lines, err := render.Structured(a, module, render.QuoterFor(runtime.GOOS))
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "Module to print configuration for.")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}

func newMergeCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "merge [FILE...]",
		Short: "Merge persisted artifacts into one legacy document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := merge.Merge(cmd.Context(), args)
			if err != nil {
				if errors.Is(err, merge.ErrNoData) {
					fmt.Fprintln(out, "no data")
					return nil
				}
				return err
			}
			return doc.Render(out, render.QuoterFor(runtime.GOOS))
		},
	}
}
