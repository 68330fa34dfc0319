package adapters

import (
	"context"
	"strings"
	"testing"

	"pynguinbatch/internal/rundir"
)

func TestMockAdapterWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	result, err := (&MockAdapter{ExitCode: 2}).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status.ExitCode != 2 {
		t.Fatalf("unexpected status %+v", result.Status)
	}
	if !strings.Contains(readFile(t, result.StdoutPath), "--seed 987654321") {
		t.Fatalf("expected rendered args in stdout log")
	}
	status, err := rundir.ReadStatus(cfg.OutputDir)
	if err != nil || status.ExitCode != 2 {
		t.Fatalf("ReadStatus = %+v, %v", status, err)
	}
}

func TestMockAdapterHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&MockAdapter{}).Run(ctx, testConfig(t)); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
