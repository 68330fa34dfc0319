package rundir

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Artifact file names inside a run directory.
const (
	SeedFile       = "seed"
	StdoutFile     = "stdout.log"
	StderrFile     = "stderr.log"
	ReturnCodeFile = "return_code"
	DoneFile       = ".done"
)

// TimeoutSentinel is written to the return code file when the run timed out.
const TimeoutSentinel = "None"

// State describes how far a run directory got.
type State int

const (
	// Missing means the directory does not exist.
	Missing State = iota
	// Incomplete means the directory exists but the run never finished writing its status.
	Incomplete
	// Complete means the run finished, or the directory uses the legacy layout
	// with a return code and no marker.
	Complete
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the outcome of a single run.
type Status struct {
	ExitCode int
	TimedOut bool
}

func (s Status) String() string {
	if s.TimedOut {
		return TimeoutSentinel
	}
	return strconv.Itoa(s.ExitCode)
}

// ParseStatus reads a return code file body.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == TimeoutSentinel {
		return Status{TimedOut: true}, nil
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return Status{}, fmt.Errorf("parse return code %q: %w", raw, err)
	}
	return Status{ExitCode: code}, nil
}

// Path returns the directory of repetition index under an experiment.
func Path(resultsRoot, experiment string, index int) string {
	return filepath.Join(resultsRoot, experiment, strconv.Itoa(index))
}

// Inspect reports the state of a run directory.
func Inspect(dir string) (State, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Missing, nil
	}
	if err != nil {
		return Missing, fmt.Errorf("stat run dir: %w", err)
	}
	if !info.IsDir() {
		return Missing, fmt.Errorf("run path is not a directory: %s", dir)
	}
	for _, name := range []string{DoneFile, ReturnCodeFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return Complete, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return Incomplete, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	return Incomplete, nil
}

// Prepare creates the run directory and records the seed before launch.
func Prepare(dir string, seed *big.Int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed.String()), 0o644); err != nil {
		return fmt.Errorf("write seed: %w", err)
	}
	return nil
}

// OpenLogs opens stdout.log and stderr.log for writing, truncating old content.
func OpenLogs(dir string) (stdout *os.File, stderr *os.File, err error) {
	stdout, err = os.OpenFile(filepath.Join(dir, StdoutFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err = os.OpenFile(filepath.Join(dir, StderrFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("open stderr log: %w", err)
	}
	return stdout, stderr, nil
}

// Finalize writes the return code and then the completion marker.
// Callers must have closed the log files first.
func Finalize(dir string, status Status) error {
	final := filepath.Join(dir, ReturnCodeFile)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, []byte(status.String()), 0o644); err != nil {
		return fmt.Errorf("write return code: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit return code: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(filepath.Join(dir, DoneFile), []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("write done marker: %w", err)
	}
	return nil
}

// Reset removes a run directory so it can be executed again.
func Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove run dir: %w", err)
	}
	return nil
}

// ReadSeed returns the seed recorded in a run directory.
func ReadSeed(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, SeedFile))
	if err != nil {
		return "", fmt.Errorf("read seed: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadStatus returns the recorded outcome of a finished run.
func ReadStatus(dir string) (Status, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReturnCodeFile))
	if err != nil {
		return Status{}, fmt.Errorf("read return code: %w", err)
	}
	return ParseStatus(string(data))
}
