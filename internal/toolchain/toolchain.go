package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Step names reported in StepError.
const (
	StepCheckout = "checkout"
	StepInstall  = "install"
)

// Switcher checks out a revision of the pynguin sources and reinstalls them.
type Switcher struct {
	Git string
	Pip string
}

// SwitchResult describes the checkout that is now installed.
type SwitchResult struct {
	Revision string
	Commit   string
}

// StepError reports which part of a switch failed.
type StepError struct {
	Step   string
	Stderr string
	Err    error
}

func (e *StepError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Stderr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Switch checks out revision in sourceDir and reinstalls the package from it.
func (s *Switcher) Switch(ctx context.Context, sourceDir, revision string) (*SwitchResult, error) {
	if err := s.Checkout(ctx, sourceDir, revision); err != nil {
		return nil, err
	}
	if err := s.Install(ctx, sourceDir); err != nil {
		return nil, err
	}
	commit, err := s.Head(ctx, sourceDir)
	if err != nil {
		commit = ""
	}
	return &SwitchResult{Revision: revision, Commit: commit}, nil
}

// Checkout runs git checkout inside sourceDir.
func (s *Switcher) Checkout(ctx context.Context, sourceDir, revision string) error {
	if strings.TrimSpace(revision) == "" {
		return &StepError{Step: StepCheckout, Err: fmt.Errorf("revision is required")}
	}
	if _, err := run(ctx, sourceDir, s.git(), "checkout", revision); err != nil {
		return &StepError{Step: StepCheckout, Stderr: stderrOf(err), Err: err}
	}
	return nil
}

// Install reinstalls the package at sourceDir in editable mode.
func (s *Switcher) Install(ctx context.Context, sourceDir string) error {
	if _, err := run(ctx, "", s.pip(), "install", "-e", sourceDir); err != nil {
		return &StepError{Step: StepInstall, Stderr: stderrOf(err), Err: err}
	}
	return nil
}

// Head returns the commit currently checked out in sourceDir.
func (s *Switcher) Head(ctx context.Context, sourceDir string) (string, error) {
	out, err := run(ctx, sourceDir, s.git(), "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(out)
	if commit == "" {
		return "", fmt.Errorf("git rev-parse HEAD returned empty output")
	}
	return commit, nil
}

func (s *Switcher) git() string {
	if s == nil || s.Git == "" {
		return "git"
	}
	return s.Git
}

func (s *Switcher) pip() string {
	if s == nil || s.Pip == "" {
		return "pip"
	}
	return s.Pip
}

type commandError struct {
	name   string
	args   []string
	stderr string
	err    error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.name, strings.Join(e.args, " "), e.err)
}

func (e *commandError) Unwrap() error {
	return e.err
}

func run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &commandError{
			name:   name,
			args:   args,
			stderr: strings.TrimSpace(stderr.String()),
			err:    err,
		}
	}
	return stdout.String(), nil
}

func stderrOf(err error) string {
	if ce, ok := err.(*commandError); ok {
		return ce.stderr
	}
	return ""
}
