package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const appName = "pynguinbatch"

// ExitError carries the process exit code for a failure.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand. Without a command, or when the first
// argument is a flag, the batch runs.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
			usage(stdout)
			return nil
		}
		return runBatch(ctx, stdout, stderr, args)
	}

	switch args[0] {
	case "run":
		return runBatch(ctx, stdout, stderr, args[1:])
	case "status":
		return runStatus(stdout, stderr, args[1:])
	case "seeds":
		return runSeeds(stdout, stderr, args[1:])
	case "help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command: %s", args[0])}
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "%s: run pynguin over an experiment matrix\n\n", appName)
	fmt.Fprintf(w, "Usage:\n  %s [run] [flags]\n", appName)
	fmt.Fprintf(w, "  %s status [--results-path DIR]\n", appName)
	fmt.Fprintf(w, "  %s seeds diff RESULTS_A RESULTS_B\n\n", appName)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run     Run every repetition of the selected matrix rows (default)")
	fmt.Fprintln(w, "  status  Summarize the run directories under a results path")
	fmt.Fprintln(w, "  seeds   Compare the seeds recorded in two results paths")
	fmt.Fprintln(w, "  help    Show this help")
	fmt.Fprintf(w, "\nRun '%s run -h' for the batch flags.\n", appName)
}

// parseFlags maps flag parsing failures onto usage errors.
func parseFlags(fs *flag.FlagSet, args []string) (help bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(formatStr) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
