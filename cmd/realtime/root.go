package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

var logFormat string

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Task board realtime update service",
		Long: `Pushes task, comment and notification events to connected
browsers over WebSocket, scoped by organization.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json or text)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewListenCmd())

	return cmd
}

// newLogger builds the process logger for format, writing to w.
func newLogger(format string, w io.Writer) (zerolog.Logger, error) {
	switch format {
	case "json":
		return zerolog.New(w).With().Timestamp().Logger(), nil
	case "text":
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger(), nil
	}
	return zerolog.Nop(), oops.In("cli").With("log_format", format).
		Errorf("log-format must be 'json' or 'text', got %q", format)
}

func stderrLogger() (zerolog.Logger, error) {
	return newLogger(logFormat, os.Stderr)
}
