package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pynguinbatch/internal/rundir"
)

// MockAdapter is a deterministic, offline adapter used for dry runs and tests.
// It writes the same artifacts as a real run without spawning anything.
type MockAdapter struct {
	ExitCode int
}

func (a *MockAdapter) Name() string {
	return "mock"
}

func (a *MockAdapter) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := rundir.Prepare(cfg.OutputDir, cfg.Seed); err != nil {
		return nil, err
	}
	stdoutFile, stderrFile, err := rundir.OpenLogs(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	_, writeErr := fmt.Fprintf(stdoutFile, "mock adapter: pynguin %s\n", strings.Join(BuildArgs(cfg), " "))
	closeErr := errors.Join(writeErr, stdoutFile.Close(), stderrFile.Close())
	if closeErr != nil {
		return nil, fmt.Errorf("write mock logs: %w", closeErr)
	}

	status := rundir.Status{ExitCode: a.ExitCode}
	if err := rundir.Finalize(cfg.OutputDir, status); err != nil {
		return nil, err
	}
	return &RunResult{
		Status:     status,
		OutputDir:  cfg.OutputDir,
		StdoutPath: stdoutFile.Name(),
		StderrPath: stderrFile.Name(),
		Duration:   time.Since(started),
	}, nil
}
