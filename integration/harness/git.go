package harness

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// InitSourceRepo creates a git repository in dir standing in for the pynguin
// sources. Each branch carries a BRANCH file holding its own name; the first
// branch is the one left checked out.
func InitSourceRepo(t *testing.T, dir string, branches ...string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	if len(branches) == 0 {
		t.Fatalf("at least one branch is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create source dir: %v", err)
	}

	runGit(t, dir, "init", "-q")
	for i, branch := range branches {
		if i == 0 {
			runGit(t, dir, "checkout", "-q", "-b", branch)
		} else {
			runGit(t, dir, "checkout", "-q", "-b", branch, branches[0])
		}
		if err := os.WriteFile(filepath.Join(dir, "BRANCH"), []byte(branch+"\n"), 0o644); err != nil {
			t.Fatalf("write BRANCH: %v", err)
		}
		runGit(t, dir, "add", ".")
		runGit(t, dir, "-c", "user.name=pynguinbatch-test", "-c", "user.email=pynguinbatch-test@example.com",
			"commit", "-q", "-m", "branch "+branch)
	}
	runGit(t, dir, "checkout", "-q", branches[0])
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %v failed: %v\nstdout:\n%s\nstderr:\n%s", args, err, stdout.String(), stderr.String())
	}
}
