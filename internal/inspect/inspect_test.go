package inspect

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pynguinbatch/internal/rundir"
)

func writeRun(t *testing.T, root, exp string, idx int, seed int64, status *rundir.Status) {
	t.Helper()
	dir := rundir.Path(root, exp, idx)
	if err := rundir.Prepare(dir, big.NewInt(seed)); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if status == nil {
		return
	}
	if err := rundir.Finalize(dir, *status); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestScanCountsRunStates(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "alpha", 0, 1, &rundir.Status{})
	writeRun(t, root, "alpha", 1, 2, &rundir.Status{ExitCode: 3})
	writeRun(t, root, "alpha", 2, 3, &rundir.Status{TimedOut: true})
	writeRun(t, root, "alpha", 3, 4, nil)
	writeRun(t, root, "beta", 0, 5, &rundir.Status{})

	// Legacy layout: return code without marker.
	legacy := rundir.Path(root, "beta", 1)
	if err := os.MkdirAll(legacy, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(legacy, rundir.ReturnCodeFile), []byte("-9"), 0o644); err != nil {
		t.Fatalf("write return code: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "audit.sqlite"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write audit db: %v", err)
	}

	statuses, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(statuses))
	}
	alpha := statuses[0]
	if alpha.Name != "alpha" || alpha.Complete != 3 || alpha.Incomplete != 1 || alpha.TimedOut != 1 || alpha.NonZero != 1 {
		t.Fatalf("unexpected alpha status: %+v", alpha)
	}
	if alpha.Runs() != 4 {
		t.Fatalf("expected 4 runs, got %d", alpha.Runs())
	}
	beta := statuses[1]
	if beta.Complete != 2 || beta.NonZero != 1 || beta.Incomplete != 0 {
		t.Fatalf("unexpected beta status: %+v", beta)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing results root")
	}
}

func TestSeedListingSortsNumerically(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 11; i++ {
		writeRun(t, root, "exp", i, int64(100+i), &rundir.Status{})
	}
	lines, err := SeedListing(root)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(lines) != 11 {
		t.Fatalf("expected 11 lines, got %d", len(lines))
	}
	if lines[2] != "exp/2 102" || lines[10] != "exp/10 110" {
		t.Fatalf("unexpected order: %v", lines)
	}
}

func TestDiffSeeds(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	for _, root := range []string{a, b} {
		writeRun(t, root, "exp", 0, 42, &rundir.Status{})
		writeRun(t, root, "exp", 1, 43, &rundir.Status{})
	}

	diff, err := DiffSeeds(a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff != "" {
		t.Fatalf("expected empty diff, got:\n%s", diff)
	}

	writeRun(t, b, "exp", 1, 99, &rundir.Status{})
	diff, err = DiffSeeds(a, b)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(diff, "-exp/1 43") || !strings.Contains(diff, "+exp/1 99") {
		t.Fatalf("unexpected diff:\n%s", diff)
	}
}
