package harness

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var buildOnce sync.Once
var buildPath string
var buildErr error

var repoRootOnce sync.Once
var repoRoot string
var repoRootErr error

// RepoRoot returns the repository root for the current module.
func RepoRoot(t *testing.T) string {
	t.Helper()
	root, err := repoRootPath()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}
	return root
}

func repoRootPath() (string, error) {
	repoRootOnce.Do(func() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			repoRootErr = fmt.Errorf("runtime.Caller failed")
			return
		}

		root := filepath.Dir(filepath.Dir(filepath.Dir(file)))
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
			repoRootErr = fmt.Errorf("verify repo root: %w", err)
			return
		}
		repoRoot = root
	})
	return repoRoot, repoRootErr
}

// BinaryEnv names a prebuilt pynguinbatch binary to test instead of building one.
const BinaryEnv = "PYNGUINBATCH_BIN"

// BuildBinary returns the CLI under test. It uses $PYNGUINBATCH_BIN when set
// and otherwise compiles ./cmd/pynguinbatch once per test run.
func BuildBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		buildPath, buildErr = resolveBinary(os.Getenv(BinaryEnv))
	})
	if buildErr != nil {
		t.Fatalf("pynguinbatch binary: %v", buildErr)
	}
	return buildPath
}

func resolveBinary(prebuilt string) (string, error) {
	if prebuilt != "" {
		info, err := os.Stat(prebuilt)
		if err != nil {
			return "", fmt.Errorf("%s: %w", BinaryEnv, err)
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return "", fmt.Errorf("%s=%s is not an executable file", BinaryEnv, prebuilt)
		}
		return filepath.Abs(prebuilt)
	}

	root, err := repoRootPath()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "pynguinbatch-bin-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	outPath := filepath.Join(dir, "pynguinbatch")

	cmd := exec.Command("go", "build", "-o", outPath, "./cmd/pynguinbatch")
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("go build: %w\nstderr:\n%s", err, stderr.String())
	}
	return outPath, nil
}
