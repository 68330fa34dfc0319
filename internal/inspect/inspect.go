// Package inspect reports on an existing results tree without touching it.
package inspect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"pynguinbatch/internal/rundir"
)

// ExperimentStatus summarizes the run directories of one experiment.
type ExperimentStatus struct {
	Name       string
	Complete   int
	Incomplete int
	TimedOut   int
	NonZero    int
	// Unreadable counts complete runs whose return code could not be parsed.
	Unreadable int
}

// Runs is the number of run directories found.
func (s ExperimentStatus) Runs() int {
	return s.Complete + s.Incomplete
}

// Scan walks resultsRoot and reports every experiment directory in name order.
// Files at the top level (such as the audit database) are ignored.
func Scan(resultsRoot string) ([]ExperimentStatus, error) {
	experiments, err := subdirs(resultsRoot)
	if err != nil {
		return nil, err
	}
	statuses := make([]ExperimentStatus, 0, len(experiments))
	for _, name := range experiments {
		status := ExperimentStatus{Name: name}
		runs, err := runDirs(filepath.Join(resultsRoot, name))
		if err != nil {
			return nil, err
		}
		for _, idx := range runs {
			dir := rundir.Path(resultsRoot, name, idx)
			state, err := rundir.Inspect(dir)
			if err != nil {
				return nil, err
			}
			if state != rundir.Complete {
				status.Incomplete++
				continue
			}
			status.Complete++
			result, err := rundir.ReadStatus(dir)
			switch {
			case err != nil:
				status.Unreadable++
			case result.TimedOut:
				status.TimedOut++
			case result.ExitCode != 0:
				status.NonZero++
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// SeedListing returns one "experiment/index seed" line per run directory that
// recorded a seed, sorted by experiment name and numeric index.
func SeedListing(resultsRoot string) ([]string, error) {
	experiments, err := subdirs(resultsRoot)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, name := range experiments {
		runs, err := runDirs(filepath.Join(resultsRoot, name))
		if err != nil {
			return nil, err
		}
		for _, idx := range runs {
			seed, err := rundir.ReadSeed(rundir.Path(resultsRoot, name, idx))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			lines = append(lines, fmt.Sprintf("%s/%d %s", name, idx, seed))
		}
	}
	return lines, nil
}

// DiffSeeds compares the seed listings of two results trees. The result is
// empty when both trees used the same seeds for the same runs.
func DiffSeeds(a, b string) (string, error) {
	left, err := SeedListing(a)
	if err != nil {
		return "", fmt.Errorf("list seeds in %s: %w", a, err)
	}
	right, err := SeedListing(b)
	if err != nil {
		return "", fmt.Errorf("list seeds in %s: %w", b, err)
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(left),
		B:        withNewlines(right),
		FromFile: a,
		ToFile:   b,
		Context:  1,
	})
	if err != nil {
		return "", fmt.Errorf("diff seeds: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		return "", nil
	}
	return diff, nil
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line + "\n"
	}
	return out
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// runDirs returns the numeric run indices below an experiment directory.
func runDirs(dir string) ([]int, error) {
	names, err := subdirs(dir)
	if err != nil {
		return nil, err
	}
	var indices []int
	for _, name := range names {
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}
