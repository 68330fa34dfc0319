package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"pynguinbatch/internal/config"
	"pynguinbatch/internal/inspect"
	"pynguinbatch/internal/workspace"
)

func runStatus(stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resultsPath := fs.String("results-path", config.Default().ResultsPath, "Directory holding the run directories")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	root, err := workspace.ResolvePath(*resultsPath)
	if err != nil {
		return err
	}
	statuses, err := inspect.Scan(root)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintf(stdout, "No experiments under %s\n", root)
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPERIMENT\tRUNS\tCOMPLETE\tINCOMPLETE\tTIMED OUT\tNON-ZERO")
	var total inspect.ExperimentStatus
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Name, s.Runs(), s.Complete, s.Incomplete, s.TimedOut, s.NonZero)
		total.Complete += s.Complete
		total.Incomplete += s.Incomplete
		total.TimedOut += s.TimedOut
		total.NonZero += s.NonZero
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t%d\n", total.Runs(), total.Complete, total.Incomplete, total.TimedOut, total.NonZero)
	return tw.Flush()
}

func runSeeds(stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 || args[0] != "diff" {
		return &ExitError{Code: 2, Message: fmt.Sprintf("usage: %s seeds diff RESULTS_A RESULTS_B", appName)}
	}
	fs := flag.NewFlagSet("seeds diff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if help, err := parseFlags(fs, args[1:]); help || err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return &ExitError{Code: 2, Message: fmt.Sprintf("usage: %s seeds diff RESULTS_A RESULTS_B", appName)}
	}

	a, err := workspace.ResolvePath(fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := workspace.ResolvePath(fs.Arg(1))
	if err != nil {
		return err
	}
	diff, err := inspect.DiffSeeds(a, b)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(stdout, "Seeds are identical")
		return nil
	}
	fmt.Fprint(stdout, diff)
	return &ExitError{Code: 1, Message: "seed listings differ"}
}
