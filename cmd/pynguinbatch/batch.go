package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"

	"pynguinbatch/internal/adapters"
	"pynguinbatch/internal/audit"
	"pynguinbatch/internal/batch"
	"pynguinbatch/internal/config"
	"pynguinbatch/internal/matrix"
	"pynguinbatch/internal/notify"
	"pynguinbatch/internal/seeds"
	"pynguinbatch/internal/toolchain"
	"pynguinbatch/internal/workspace"
)

func runBatch(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	defaults := config.Default()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a YAML file with default settings")
	csvPath := fs.String("modules-csv-path", defaults.ModulesCSVPath, "Path to the experiment matrix CSV")
	var csvStart, csvEnd optionalInt
	fs.Var(&csvStart, "modules-csv-start", "First matrix row to run (0-based, negative counts from the end)")
	fs.Var(&csvEnd, "modules-csv-end", "Row to stop before (exclusive, negative counts from the end)")
	projectPath := fs.String("project-path", defaults.ProjectPath, "Project containing the modules under test")
	pynguinPath := fs.String("pynguin-path", defaults.PynguinPath, "Pynguin source checkout to switch branches in")
	resultsPath := fs.String("results-path", defaults.ResultsPath, "Directory receiving the run directories")
	nbExperiments := fs.Int("nb-experiments", defaults.NbExperiments, "Repetitions per matrix row")
	var baseSeed optionalInt64
	fs.Var(&baseSeed, "base-seed", "Seed for the run seed stream (default: current time in ns)")
	tool := fs.String("tool", defaults.Tool, "Tool adapter: 'pynguin' or 'mock'")
	pynguinBin := fs.String("pynguin-bin", defaults.PynguinBin, "Pynguin executable")
	gitBin := fs.String("git-bin", defaults.GitBin, "git executable")
	pipBin := fs.String("pip-bin", defaults.PipBin, "pip executable")
	var env multiStringFlag
	fs.Var(&env, "env", "Extra KEY=VALUE for the tool environment (repeatable)")
	onSwitchFailure := fs.String("on-switch-failure", defaults.OnSwitchFailure, "Branch switch failure policy: continue, skip-row or abort")
	onIncomplete := fs.String("on-incomplete", defaults.OnIncomplete, "Interrupted run policy: rerun or skip")
	auditDB := fs.String("audit-db", defaults.AuditDB, "Path to audit SQLite DB (default: <results-path>/audit.sqlite)")
	logLevel := fs.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	logFormat := fs.String("log-format", defaults.LogFormat, "Log format: text or json")
	notifyFlag := fs.Bool("notify", defaults.Notify, "Send a desktop notification when the batch ends (macOS)")

	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %v", fs.Args())}
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath, cfg)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = loaded
	}

	var flagEnv map[string]string
	var envErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "modules-csv-path":
			cfg.ModulesCSVPath = *csvPath
		case "modules-csv-start":
			cfg.ModulesCSVStart = csvStart.ptr()
		case "modules-csv-end":
			cfg.ModulesCSVEnd = csvEnd.ptr()
		case "project-path":
			cfg.ProjectPath = *projectPath
		case "pynguin-path":
			cfg.PynguinPath = *pynguinPath
		case "results-path":
			cfg.ResultsPath = *resultsPath
		case "nb-experiments":
			cfg.NbExperiments = *nbExperiments
		case "base-seed":
			v := baseSeed.value
			cfg.BaseSeed = &v
		case "tool":
			cfg.Tool = *tool
		case "pynguin-bin":
			cfg.PynguinBin = *pynguinBin
		case "git-bin":
			cfg.GitBin = *gitBin
		case "pip-bin":
			cfg.PipBin = *pipBin
		case "env":
			flagEnv, envErr = config.ParseEnv(env.values)
		case "on-switch-failure":
			cfg.OnSwitchFailure = *onSwitchFailure
		case "on-incomplete":
			cfg.OnIncomplete = *onIncomplete
		case "audit-db":
			cfg.AuditDB = *auditDB
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "notify":
			cfg.Notify = *notifyFlag
		}
	})
	if envErr != nil {
		return &ExitError{Code: 2, Message: envErr.Error()}
	}
	if len(flagEnv) > 0 {
		merged := make(map[string]string, len(cfg.Env)+len(flagEnv))
		for k, v := range cfg.Env {
			merged[k] = v
		}
		for k, v := range flagEnv {
			merged[k] = v
		}
		cfg.Env = merged
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	switchPolicy, _ := batch.ParseSwitchPolicy(cfg.OnSwitchFailure)
	incompletePolicy, _ := batch.ParseIncompletePolicy(cfg.OnIncomplete)

	ws, err := workspace.Resolve(workspace.Paths{
		Matrix:  cfg.ModulesCSVPath,
		Project: cfg.ProjectPath,
		Source:  cfg.PynguinPath,
		Results: cfg.ResultsPath,
		AuditDB: cfg.AuditDB,
	})
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	experiments, err := matrix.Load(ws.MatrixPath)
	if err != nil {
		return err
	}
	if err := ws.EnsureDirs(); err != nil {
		return err
	}

	base := seeds.DefaultBase()
	if cfg.BaseSeed != nil {
		base = *cfg.BaseSeed
	}
	batchID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr).With("batch_id", batchID)
	logger.Info("starting batch", "matrix", ws.MatrixPath, "rows", len(experiments),
		"results", ws.ResultsRoot, "base_seed", base, "tool", cfg.Tool)

	var runner adapters.Tool
	switch cfg.Tool {
	case "mock":
		runner = &adapters.MockAdapter{}
	default:
		runner = &adapters.PynguinAdapter{Binary: cfg.PynguinBin}
	}

	driver := &batch.Driver{
		Tool:     runner,
		Switcher: &toolchain.Switcher{Git: cfg.GitBin, Pip: cfg.PipBin},
		Audit:    audit.NewLogger(ws.AuditDBPath, batchID),
		Logger:   logger,
		Out:      stdout,
	}
	summary, runErr := driver.Run(ctx, batch.Options{
		Experiments:     experiments,
		Start:           cfg.ModulesCSVStart,
		End:             cfg.ModulesCSVEnd,
		Repetitions:     cfg.NbExperiments,
		Seeds:           seeds.NewStream(base),
		ProjectPath:     ws.ProjectPath,
		SourcePath:      ws.SourcePath,
		ResultsRoot:     ws.ResultsRoot,
		Env:             cfg.Env,
		OnSwitchFailure: switchPolicy,
		OnIncomplete:    incompletePolicy,
	})
	if summary == nil {
		summary = &batch.Summary{}
	}

	fmt.Fprintf(stdout, "Done: %d rows, %d runs executed, %d skipped, %d failed, %d timed out (base seed %d)\n",
		summary.Rows, summary.Executed, summary.Skipped, summary.Failed, summary.TimedOut, base)

	notifier := &notify.Notifier{Enabled: cfg.Notify}
	title, message := notify.FormatBatchComplete(summary.Rows, summary.Executed, summary.Skipped,
		summary.Failed, summary.TimedOut, runErr)
	if err := notifier.Send(title, message); err != nil {
		logger.Warn("notification failed", "err", err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("batch interrupted, rerun the same command to resume: %w", runErr)
		}
		return runErr
	}
	return nil
}
