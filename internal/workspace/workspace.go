package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultAuditFile = "audit.sqlite"

// Paths are the user-supplied locations, possibly relative or starting with ~.
type Paths struct {
	Matrix  string
	Project string
	Source  string
	Results string
	AuditDB string
}

// Workspace holds the absolute locations a batch reads and writes.
type Workspace struct {
	MatrixPath  string
	ProjectPath string
	SourcePath  string
	ResultsRoot string
	AuditDBPath string
}

// Resolve expands and absolutizes every path. Nothing is required to exist
// yet; the audit database defaults to a file inside the results root.
func Resolve(p Paths) (*Workspace, error) {
	ws := &Workspace{}
	fields := []struct {
		name string
		in   string
		out  *string
	}{
		{"matrix path", p.Matrix, &ws.MatrixPath},
		{"project path", p.Project, &ws.ProjectPath},
		{"pynguin path", p.Source, &ws.SourcePath},
		{"results path", p.Results, &ws.ResultsRoot},
	}
	for _, f := range fields {
		resolved, err := ResolvePath(f.in)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f.name, err)
		}
		if resolved == "" {
			return nil, fmt.Errorf("%s is required", f.name)
		}
		*f.out = resolved
	}

	if strings.TrimSpace(p.AuditDB) == "" {
		ws.AuditDBPath = filepath.Join(ws.ResultsRoot, defaultAuditFile)
		return ws, nil
	}
	auditPath, err := ResolvePath(p.AuditDB)
	if err != nil {
		return nil, fmt.Errorf("resolve audit db: %w", err)
	}
	ws.AuditDBPath = auditPath
	return ws, nil
}

// EnsureDirs creates the results root.
func (w *Workspace) EnsureDirs() error {
	if w == nil {
		return fmt.Errorf("workspace is nil")
	}
	if err := os.MkdirAll(w.ResultsRoot, 0o755); err != nil {
		return fmt.Errorf("ensure %s: %w", w.ResultsRoot, err)
	}
	return nil
}

// ResolvePath returns an absolute, cleaned path with a leading ~ expanded.
// Blank input resolves to "".
func ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}
	return "", fmt.Errorf("unsupported home expansion: %s", path)
}
