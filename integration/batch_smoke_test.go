package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pynguinbatch/integration/harness"
)

type batchEnv struct {
	bin     string
	workDir string
	source  string
	project string
}

func newBatchEnv(t *testing.T) *batchEnv {
	t.Helper()
	env := &batchEnv{
		bin:     harness.BuildBinary(t),
		workDir: t.TempDir(),
	}
	harness.CopyDir(t, harness.Fixture(t, "batch-min"), env.workDir)
	env.source = filepath.Join(env.workDir, "pynguin-src")
	harness.InitSourceRepo(t, env.source, "main", "feature")
	env.project = filepath.Join(env.workDir, "project")
	if err := os.MkdirAll(env.project, 0o755); err != nil {
		t.Fatalf("create project dir: %v", err)
	}
	return env
}

func (e *batchEnv) args(extra ...string) []string {
	args := []string{
		"run",
		"--modules-csv-path", "modules.csv",
		"--project-path", e.project,
		"--pynguin-path", e.source,
		"--pynguin-bin", filepath.Join(e.workDir, "bin", "pynguin"),
		"--pip-bin", filepath.Join(e.workDir, "bin", "pip"),
		"--env", "PYNGUIN_SOURCE=" + e.source,
	}
	return append(args, extra...)
}

func readTrimmed(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

func TestBatchEndToEnd(t *testing.T) {
	env := newBatchEnv(t)
	results := filepath.Join(env.workDir, "results")

	res := harness.Run(t, env.bin, env.workDir, env.args("--nb-experiments", "2", "--base-seed", "99"))
	if res.ExitCode != 0 {
		t.Fatalf("batch exit code %d\nstdout:\n%s\nstderr:\n%s", res.ExitCode, res.Stdout, res.Stderr)
	}

	cases := []struct {
		exp        string
		returnCode string
		branch     string
	}{
		{"ok", "0", "main"},
		{"failing", "3", "feature"},
		{"slow", "None", "main"},
		{"orphan", "0", "main"},
	}
	for _, tc := range cases {
		for i := 0; i < 2; i++ {
			dir := filepath.Join(results, tc.exp, []string{"0", "1"}[i])
			if got := readTrimmed(t, filepath.Join(dir, "return_code")); got != tc.returnCode {
				t.Fatalf("%s: return_code = %q, want %q", dir, got, tc.returnCode)
			}
			if _, err := os.Stat(filepath.Join(dir, ".done")); err != nil {
				t.Fatalf("%s: missing done marker: %v", dir, err)
			}
			if readTrimmed(t, filepath.Join(dir, "seed")) == "" {
				t.Fatalf("%s: empty seed", dir)
			}
			stdout := readTrimmed(t, filepath.Join(dir, "stdout.log"))
			if !strings.Contains(stdout, "branch="+tc.branch) {
				t.Fatalf("%s: expected branch %s in stdout:\n%s", dir, tc.branch, stdout)
			}
		}
	}

	okDir := filepath.Join(results, "ok", "0")
	okStdout := readTrimmed(t, filepath.Join(okDir, "stdout.log"))
	if !strings.Contains(okStdout, "--report="+okDir+"/report") {
		t.Fatalf("placeholder not expanded:\n%s", okStdout)
	}
	if !strings.Contains(okStdout, "--output-variables TargetModule AlgorithmIterations Coverage TotalTime SearchTime LineNos MutationScore -v") {
		t.Fatalf("unexpected argument list:\n%s", okStdout)
	}
	if got := readTrimmed(t, filepath.Join(results, "failing", "0", "stderr.log")); got != "boom" {
		t.Fatalf("stderr.log = %q, want boom", got)
	}

	requireAuditEvents(t, filepath.Join(results, "audit.sqlite"), []string{
		"batch_started",
		"branch_switched",
		"branch_switch_failed",
		"run_started",
		"run_finished",
		"batch_finished",
	})

	again := harness.Run(t, env.bin, env.workDir, env.args("--nb-experiments", "2", "--base-seed", "99"))
	if again.ExitCode != 0 {
		t.Fatalf("second batch exit code %d\nstderr:\n%s", again.ExitCode, again.Stderr)
	}
	if n := strings.Count(again.Stdout, "Skipping because the experiment path already exists"); n != 8 {
		t.Fatalf("expected 8 skips on resume, got %d\nstdout:\n%s", n, again.Stdout)
	}

	status := harness.Run(t, env.bin, env.workDir, []string{"status", "--results-path", results})
	if status.ExitCode != 0 {
		t.Fatalf("status exit code %d\nstderr:\n%s", status.ExitCode, status.Stderr)
	}
	for _, line := range strings.Split(status.Stdout, "\n") {
		if strings.HasPrefix(line, "slow") {
			if fields := strings.Fields(line); strings.Join(fields, " ") != "slow 2 2 0 2 0" {
				t.Fatalf("unexpected slow status line %q", line)
			}
		}
	}
}

func TestInterruptedRunIsResumed(t *testing.T) {
	env := newBatchEnv(t)
	if err := os.WriteFile(filepath.Join(env.workDir, "modules.csv"), []byte("slow.mod,slow,main,5,60,\n"), 0o644); err != nil {
		t.Fatalf("write matrix: %v", err)
	}
	results := filepath.Join(env.workDir, "results")
	runDir := filepath.Join(results, "slow", "0")

	p := harness.Start(t, env.bin, env.workDir, env.args("--nb-experiments", "1", "--base-seed", "5"), nil)
	harness.WaitForFile(t, filepath.Join(runDir, "stdout.log"), 10*time.Second)
	p.Interrupt(t)
	res := p.Wait(t)
	if res.ExitCode != 1 {
		t.Fatalf("interrupted batch exit code %d, want 1\nstderr:\n%s", res.ExitCode, res.Stderr)
	}
	if _, err := os.Stat(filepath.Join(runDir, "return_code")); !os.IsNotExist(err) {
		t.Fatalf("interrupted run must not record a return code: %v", err)
	}
	seed := readTrimmed(t, filepath.Join(runDir, "seed"))

	resumed := harness.Run(t, env.bin, env.workDir, env.args("--nb-experiments", "1", "--base-seed", "5", "--tool", "mock"))
	if resumed.ExitCode != 0 {
		t.Fatalf("resumed batch exit code %d\nstderr:\n%s", resumed.ExitCode, resumed.Stderr)
	}
	if !strings.Contains(resumed.Stdout, "Rerunning because the previous attempt did not finish") {
		t.Fatalf("expected rerun notice\nstdout:\n%s", resumed.Stdout)
	}
	if got := readTrimmed(t, filepath.Join(runDir, "seed")); got != seed {
		t.Fatalf("rerun seed %s, want %s", got, seed)
	}
	if got := readTrimmed(t, filepath.Join(runDir, "return_code")); got != "0" {
		t.Fatalf("return_code = %q after rerun", got)
	}
}

func TestSeedDiffAcrossResultTrees(t *testing.T) {
	env := newBatchEnv(t)
	first := filepath.Join(env.workDir, "first")
	copied := filepath.Join(env.workDir, "copied")
	other := filepath.Join(env.workDir, "other")

	res := harness.Run(t, env.bin, env.workDir, env.args("--tool", "mock", "--nb-experiments", "3", "--base-seed", "1", "--results-path", first))
	if res.ExitCode != 0 {
		t.Fatalf("batch exit code %d\nstderr:\n%s", res.ExitCode, res.Stderr)
	}
	harness.CopyDir(t, first, copied)
	res = harness.Run(t, env.bin, env.workDir, env.args("--tool", "mock", "--nb-experiments", "3", "--base-seed", "2", "--results-path", other))
	if res.ExitCode != 0 {
		t.Fatalf("batch exit code %d\nstderr:\n%s", res.ExitCode, res.Stderr)
	}

	same := harness.Run(t, env.bin, env.workDir, []string{"seeds", "diff", first, copied})
	if same.ExitCode != 0 || !strings.Contains(same.Stdout, "Seeds are identical") {
		t.Fatalf("expected identical seeds, exit %d\nstdout:\n%s", same.ExitCode, same.Stdout)
	}
	diff := harness.Run(t, env.bin, env.workDir, []string{"seeds", "diff", first, other})
	if diff.ExitCode != 1 || !strings.Contains(diff.Stdout, "+ok/0 ") {
		t.Fatalf("expected differing seeds, exit %d\nstdout:\n%s", diff.ExitCode, diff.Stdout)
	}
}
