package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"pynguinbatch/internal/adapters"
	"pynguinbatch/internal/audit"
	"pynguinbatch/internal/matrix"
	"pynguinbatch/internal/rundir"
	"pynguinbatch/internal/seeds"
	"pynguinbatch/internal/toolchain"
)

const auditActor = "batch"

// Switcher installs the tool revision a row asks for.
type Switcher interface {
	Switch(ctx context.Context, sourceDir, revision string) (*toolchain.SwitchResult, error)
}

// Driver walks the experiment matrix and runs every repetition in order.
type Driver struct {
	Tool     adapters.Tool
	Switcher Switcher
	Audit    *audit.Logger
	Logger   *slog.Logger
	// Out receives the human readable progress lines.
	Out io.Writer
}

// Options describe one batch invocation.
type Options struct {
	Experiments     []matrix.Experiment
	Start           *int
	End             *int
	Repetitions     int
	Seeds           *seeds.Stream
	ProjectPath     string
	SourcePath      string
	ResultsRoot     string
	Env             map[string]string
	OnSwitchFailure SwitchPolicy
	OnIncomplete    IncompletePolicy
}

// Summary counts what a batch did.
type Summary struct {
	Rows           int
	SwitchFailures int
	Executed       int
	Skipped        int
	Reruns         int
	Succeeded      int
	Failed         int
	TimedOut       int
}

// Run processes the selected rows. Seeds are drawn for every repetition in
// matrix-then-repetition order whether or not the repetition is executed, so
// a given base seed and window always pair the same seed with the same run.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	if d.Tool == nil {
		return nil, errors.New("tool is required")
	}
	if d.Switcher == nil {
		return nil, errors.New("switcher is required")
	}
	if opts.Seeds == nil {
		return nil, errors.New("seed stream is required")
	}
	if opts.ResultsRoot == "" {
		return nil, errors.New("results root is required")
	}
	if opts.Repetitions < 0 {
		return nil, fmt.Errorf("repetitions must not be negative, got %d", opts.Repetitions)
	}
	if opts.OnSwitchFailure == "" {
		opts.OnSwitchFailure = SwitchContinue
	}
	if opts.OnIncomplete == "" {
		opts.OnIncomplete = IncompleteRerun
	}

	lo, hi := matrix.Window(len(opts.Experiments), opts.Start, opts.End)
	summary := &Summary{}
	started := time.Now()

	d.logEvent("batch_started", map[string]any{
		"rows_total":        len(opts.Experiments),
		"window_start":      lo,
		"window_end":        hi,
		"repetitions":       opts.Repetitions,
		"base_seed":         opts.Seeds.Base(),
		"tool":              d.Tool.Name(),
		"results_root":      opts.ResultsRoot,
		"on_switch_failure": string(opts.OnSwitchFailure),
		"on_incomplete":     string(opts.OnIncomplete),
	})
	d.logger().Info("batch started", "rows", hi-lo, "window_start", lo, "window_end", hi,
		"repetitions", opts.Repetitions, "base_seed", opts.Seeds.Base())

	var runErr error
	for row := lo; row < hi; row++ {
		if err := d.runRow(ctx, opts, row, opts.Experiments[row], summary); err != nil {
			runErr = err
			break
		}
	}

	finishPayload := map[string]any{
		"rows":            summary.Rows,
		"switch_failures": summary.SwitchFailures,
		"executed":        summary.Executed,
		"skipped":         summary.Skipped,
		"reruns":          summary.Reruns,
		"succeeded":       summary.Succeeded,
		"failed":          summary.Failed,
		"timed_out":       summary.TimedOut,
		"seeds_drawn":     opts.Seeds.Drawn(),
		"duration_ms":     time.Since(started).Milliseconds(),
	}
	if runErr != nil {
		finishPayload["error"] = runErr.Error()
	}
	d.logEvent("batch_finished", finishPayload)
	d.logger().Info("batch finished", "executed", summary.Executed, "skipped", summary.Skipped,
		"failed", summary.Failed, "timed_out", summary.TimedOut, "duration", time.Since(started))

	return summary, runErr
}

func (d *Driver) runRow(ctx context.Context, opts Options, row int, exp matrix.Experiment, summary *Summary) error {
	logger := d.logger().With("row", row, "experiment", exp.ExperimentName)
	fmt.Fprintf(d.out(), "%s : Running %d experiments with \"%s\" on branch \"%s\"\n",
		exp.ExperimentName, opts.Repetitions, exp.ModuleName, exp.BranchName)
	summary.Rows++

	if exp.Timeout < exp.MaximumSearchTime {
		logger.Warn("timeout is shorter than the search budget", "timeout", exp.Timeout,
			"maximum_search_time", exp.MaximumSearchTime, "line", exp.Line)
	}

	d.logEvent("row_started", map[string]any{
		"row":                 row,
		"experiment":          exp.ExperimentName,
		"module":              exp.ModuleName,
		"branch":              exp.BranchName,
		"maximum_search_time": exp.MaximumSearchTime,
		"timeout":             exp.Timeout,
		"extra_args":          exp.ExtraArgs,
	})

	skipRow := false
	switched, err := d.Switcher.Switch(ctx, opts.SourcePath, exp.BranchName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("switch to %s: %w", exp.BranchName, ctxErr)
		}
		summary.SwitchFailures++
		logger.Warn("branch switch failed", "branch", exp.BranchName, "policy", string(opts.OnSwitchFailure), "err", err)
		d.logEvent("branch_switch_failed", map[string]any{
			"row":    row,
			"branch": exp.BranchName,
			"policy": string(opts.OnSwitchFailure),
			"error":  err.Error(),
		})
		switch opts.OnSwitchFailure {
		case SwitchAbort:
			return fmt.Errorf("switch %s to branch %s: %w", exp.ExperimentName, exp.BranchName, err)
		case SwitchSkipRow:
			skipRow = true
		}
	} else {
		commit := ""
		if switched != nil {
			commit = switched.Commit
		}
		logger.Debug("branch switched", "branch", exp.BranchName, "commit", commit)
		d.logEvent("branch_switched", map[string]any{
			"row":    row,
			"branch": exp.BranchName,
			"commit": commit,
		})
	}

	for i := 0; i < opts.Repetitions; i++ {
		fmt.Fprintf(d.out(), "Experiment %d\n", i)
		dir := rundir.Path(opts.ResultsRoot, exp.ExperimentName, i)
		seed := opts.Seeds.Next()

		if skipRow {
			fmt.Fprintln(d.out(), "Skipping because the branch switch failed")
			d.skip(summary, row, exp, i, dir, "switch_failed")
			continue
		}

		state, err := rundir.Inspect(dir)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", dir, err)
		}
		switch state {
		case rundir.Complete:
			fmt.Fprintln(d.out(), "Skipping because the experiment path already exists")
			d.skip(summary, row, exp, i, dir, "complete")
			continue
		case rundir.Incomplete:
			if opts.OnIncomplete == IncompleteSkip {
				fmt.Fprintln(d.out(), "Skipping because the experiment path already exists")
				d.skip(summary, row, exp, i, dir, "incomplete")
				continue
			}
			fmt.Fprintln(d.out(), "Rerunning because the previous attempt did not finish")
			logger.Warn("removing incomplete run", "index", i, "dir", dir)
			if err := rundir.Reset(dir); err != nil {
				return err
			}
			summary.Reruns++
		}

		if err := d.execute(ctx, opts, row, exp, i, dir, seed, summary); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) execute(ctx context.Context, opts Options, row int, exp matrix.Experiment, index int, dir string, seed *big.Int, summary *Summary) error {
	cfg := adapters.RunConfig{
		ModuleName:        exp.ModuleName,
		ProjectPath:       opts.ProjectPath,
		OutputDir:         dir,
		MaximumSearchTime: exp.MaximumSearchTime,
		Timeout:           time.Duration(exp.Timeout) * time.Second,
		Seed:              seed,
		ExtraArgs:         exp.ExtraArgs,
		Env:               opts.Env,
	}

	basePayload := func() map[string]any {
		return map[string]any{
			"row":        row,
			"experiment": exp.ExperimentName,
			"index":      index,
			"dir":        dir,
			"seed":       seed.String(),
			"tool":       d.Tool.Name(),
		}
	}
	d.logEvent("run_started", basePayload())

	result, err := d.Tool.Run(ctx, cfg)
	finishPayload := basePayload()
	if err != nil {
		finishPayload["error"] = err.Error()
		d.logEvent("run_finished", finishPayload)
		if ctx.Err() != nil {
			d.logger().Warn("batch interrupted", "experiment", exp.ExperimentName, "index", index, "dir", dir)
		}
		return fmt.Errorf("run %s/%d: %w", exp.ExperimentName, index, err)
	}

	summary.Executed++
	switch {
	case result.Status.TimedOut:
		summary.TimedOut++
	case result.Status.ExitCode == 0:
		summary.Succeeded++
	default:
		summary.Failed++
	}

	finishPayload["return_code"] = result.Status.String()
	finishPayload["duration_ms"] = result.Duration.Milliseconds()
	d.logEvent("run_finished", finishPayload)
	d.logger().Info("run finished", "experiment", exp.ExperimentName, "index", index,
		"return_code", result.Status.String(), "duration", result.Duration)
	return nil
}

func (d *Driver) skip(summary *Summary, row int, exp matrix.Experiment, index int, dir, reason string) {
	summary.Skipped++
	d.logEvent("run_skipped", map[string]any{
		"row":        row,
		"experiment": exp.ExperimentName,
		"index":      index,
		"dir":        dir,
		"reason":     reason,
	})
}

func (d *Driver) logEvent(eventType string, payload map[string]any) {
	if err := d.Audit.LogEvent(auditActor, eventType, payload); err != nil {
		d.logger().Warn("audit log failed", "event", eventType, "err", err)
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

func (d *Driver) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}
