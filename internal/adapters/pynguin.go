package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pynguinbatch/internal/rundir"
)

// ExperimentPathPlaceholder is replaced by the run's output directory in extra arguments.
const ExperimentPathPlaceholder = "{experiment_path}"

// OutputVariables are the statistics requested from every run.
var OutputVariables = []string{
	"TargetModule",
	"AlgorithmIterations",
	"Coverage",
	"TotalTime",
	"SearchTime",
	"LineNos",
	"MutationScore",
}

// PynguinAdapter shells out to the pynguin CLI.
type PynguinAdapter struct {
	Binary string
}

func (a *PynguinAdapter) Name() string {
	return "pynguin"
}

func (a *PynguinAdapter) binary() string {
	if a == nil || a.Binary == "" {
		return "pynguin"
	}
	return a.Binary
}

func (a *PynguinAdapter) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if err := validateConfig(cfg); err != nil {
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
	status, runErr := a.launch(ctx, cfg, stdoutFile, stderrFile)
	closeErr := errors.Join(stdoutFile.Close(), stderrFile.Close())

	result := &RunResult{
		Status:     status,
		OutputDir:  cfg.OutputDir,
		StdoutPath: stdoutFile.Name(),
		StderrPath: stderrFile.Name(),
		Duration:   time.Since(started),
	}
	if runErr != nil {
		return result, runErr
	}
	if closeErr != nil {
		return result, fmt.Errorf("close logs: %w", closeErr)
	}
	if err := rundir.Finalize(cfg.OutputDir, status); err != nil {
		return result, err
	}
	return result, nil
}

func (a *PynguinAdapter) launch(ctx context.Context, cfg RunConfig, stdout, stderr *os.File) (rundir.Status, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, a.binary(), BuildArgs(cfg)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)

	err := cmd.Run()
	if err == nil {
		return rundir.Status{ExitCode: 0}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return rundir.Status{}, fmt.Errorf("run interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return classifyExit(exitErr, errors.Is(runCtx.Err(), context.DeadlineExceeded)), nil
	}
	return rundir.Status{}, fmt.Errorf("start %s: %w", a.binary(), err)
}

// classifyExit reports a timeout only when the deadline passed and the child
// died from a signal. A child that exited on its own keeps its exit code even
// if it was reaped after the deadline.
func classifyExit(exitErr *exec.ExitError, deadlineHit bool) rundir.Status {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if deadlineHit && ok && ws.Signaled() {
		return rundir.Status{TimedOut: true}
	}
	return exitStatus(exitErr)
}

// BuildArgs renders the pynguin command line for a run.
func BuildArgs(cfg RunConfig) []string {
	args := []string{
		"--module-name", cfg.ModuleName,
		"--project-path", cfg.ProjectPath,
		"--output-path", cfg.OutputDir,
		"--report-dir", cfg.OutputDir,
		"--maximum-search-time", strconv.Itoa(cfg.MaximumSearchTime),
		"--seed", cfg.Seed.String(),
		"--output-variables",
	}
	args = append(args, OutputVariables...)
	args = append(args, "-v")
	for _, extra := range cfg.ExtraArgs {
		args = append(args, ExpandPlaceholder(extra, cfg.OutputDir))
	}
	return args
}

// ExpandPlaceholder substitutes the experiment path placeholder in arg.
func ExpandPlaceholder(arg, outputDir string) string {
	return strings.ReplaceAll(arg, ExperimentPathPlaceholder, outputDir)
}

func validateConfig(cfg RunConfig) error {
	if cfg.ModuleName == "" {
		return errors.New("module name is required")
	}
	if cfg.OutputDir == "" {
		return errors.New("output dir is required")
	}
	if cfg.Seed == nil {
		return errors.New("seed is required")
	}
	return nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		key := entry
		if idx := strings.IndexByte(entry, '='); idx >= 0 {
			key = entry[:idx]
		}
		if _, ok := overrides[key]; ok {
			continue
		}
		merged = append(merged, entry)
	}
	for key, value := range overrides {
		merged = append(merged, fmt.Sprintf("%s=%s", key, value))
	}
	return merged
}

// exitStatus mirrors the usual convention of reporting a signal-killed child
// as the negative signal number.
func exitStatus(exitErr *exec.ExitError) rundir.Status {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return rundir.Status{ExitCode: -int(ws.Signal())}
	}
	return rundir.Status{ExitCode: exitErr.ExitCode()}
}
