package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pynguinbatch/internal/batch"
)

// Config holds every setting of a batch invocation. Keys mirror the command
// line flags with dashes replaced by underscores.
type Config struct {
	ModulesCSVPath  string            `yaml:"modules_csv_path"`
	ModulesCSVStart *int              `yaml:"modules_csv_start"`
	ModulesCSVEnd   *int              `yaml:"modules_csv_end"`
	ProjectPath     string            `yaml:"project_path"`
	PynguinPath     string            `yaml:"pynguin_path"`
	ResultsPath     string            `yaml:"results_path"`
	NbExperiments   int               `yaml:"nb_experiments"`
	BaseSeed        *int64            `yaml:"base_seed"`
	Tool            string            `yaml:"tool"`
	PynguinBin      string            `yaml:"pynguin_bin"`
	GitBin          string            `yaml:"git_bin"`
	PipBin          string            `yaml:"pip_bin"`
	Env             map[string]string `yaml:"env"`
	OnSwitchFailure string            `yaml:"on_switch_failure"`
	OnIncomplete    string            `yaml:"on_incomplete"`
	AuditDB         string            `yaml:"audit_db"`
	LogLevel        string            `yaml:"log_level"`
	LogFormat       string            `yaml:"log_format"`
	Notify          bool              `yaml:"notify"`
}

// Default returns the settings used when neither a file nor a flag says otherwise.
func Default() Config {
	return Config{
		ModulesCSVPath:  "modules.csv",
		ProjectPath:     ".",
		PynguinPath:     "pynguin",
		ResultsPath:     "results",
		NbExperiments:   30,
		Tool:            "pynguin",
		PynguinBin:      "pynguin",
		GitBin:          "git",
		PipBin:          "pip",
		OnSwitchFailure: string(batch.SwitchContinue),
		OnIncomplete:    string(batch.IncompleteRerun),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the
// file keep their value from base; unknown keys are rejected.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by flag parsing.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.ModulesCSVPath) == "" {
		problems = append(problems, "modules_csv_path is required")
	}
	if strings.TrimSpace(c.ResultsPath) == "" {
		problems = append(problems, "results_path is required")
	}
	if c.NbExperiments < 0 {
		problems = append(problems, fmt.Sprintf("nb_experiments must not be negative, got %d", c.NbExperiments))
	}
	switch c.Tool {
	case "pynguin", "mock":
	default:
		problems = append(problems, fmt.Sprintf("tool must be 'pynguin' or 'mock', got %q", c.Tool))
	}
	if _, err := batch.ParseSwitchPolicy(c.OnSwitchFailure); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := batch.ParseIncompletePolicy(c.OnIncomplete); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "log_level must be 'debug', 'info', 'warn', or 'error'")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, "log_format must be 'text' or 'json'")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseEnv splits KEY=VALUE pairs into a map.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("env entry %q must look like KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
