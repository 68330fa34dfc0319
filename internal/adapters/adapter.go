package adapters

import (
	"context"
	"math/big"
	"time"

	"pynguinbatch/internal/rundir"
)

// Tool runs the test generator once for a single repetition.
type Tool interface {
	Name() string
	Run(ctx context.Context, cfg RunConfig) (*RunResult, error)
}

// RunConfig configures one invocation of the test generator.
type RunConfig struct {
	ModuleName        string
	ProjectPath       string
	OutputDir         string
	MaximumSearchTime int
	Timeout           time.Duration
	Seed              *big.Int
	ExtraArgs         []string
	Env               map[string]string
}

// RunResult captures where a run left its artifacts and how it ended.
type RunResult struct {
	Status     rundir.Status
	OutputDir  string
	StdoutPath string
	StderrPath string
	Duration   time.Duration
}
