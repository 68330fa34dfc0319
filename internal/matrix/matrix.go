package matrix

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names, in file order.
var Columns = []string{
	"module_name",
	"experiment_name",
	"branch_name",
	"maximum_search_time",
	"timeout",
	"extra_args",
}

// Experiment is one row of the experiment matrix.
type Experiment struct {
	ModuleName        string
	ExperimentName    string
	BranchName        string
	MaximumSearchTime int
	Timeout           int
	ExtraArgs         []string
	Line              int
}

// ParseError points at the row and column that could not be read.
type ParseError struct {
	Source  string
	Line    int
	Field   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("%s:%d", e.Source, e.Line)
	if e.Field != "" {
		loc = fmt.Sprintf("%s: %s", loc, e.Field)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads and validates the matrix file at path.
func Load(path string) ([]Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f, path)
}

// Parse reads matrix rows from r, preserving their order. source names the
// input in error messages.
func Parse(r io.Reader, source string) ([]Experiment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Quotes inside unquoted fields are kept as is, e.g. --x="a" in extra args.
	reader.LazyQuotes = true

	var experiments []Experiment
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Source: source, Line: csvErr.Line, Message: csvErr.Err.Error(), Err: err}
			}
			return nil, fmt.Errorf("read matrix: %w", err)
		}
		line, _ := reader.FieldPos(0)
		exp, err := parseRecord(record, source, line)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	return experiments, nil
}

func parseRecord(record []string, source string, line int) (Experiment, error) {
	if len(record) != len(Columns) {
		return Experiment{}, &ParseError{
			Source:  source,
			Line:    line,
			Message: fmt.Sprintf("expected %d columns, got %d", len(Columns), len(record)),
		}
	}

	exp := Experiment{
		ModuleName:     record[0],
		ExperimentName: record[1],
		BranchName:     record[2],
		ExtraArgs:      SplitArgs(record[5]),
		Line:           line,
	}
	if strings.TrimSpace(exp.BranchName) == "" {
		return Experiment{}, &ParseError{Source: source, Line: line, Field: Columns[2], Message: "branch name is required"}
	}

	var err error
	if exp.MaximumSearchTime, err = parsePositive(record[3], source, line, Columns[3]); err != nil {
		return Experiment{}, err
	}
	if exp.Timeout, err = parsePositive(record[4], source, line, Columns[4]); err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

func parsePositive(raw, source string, line int, field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParseError{
			Source:  source,
			Line:    line,
			Field:   field,
			Message: fmt.Sprintf("%q is not an integer", raw),
			Err:     err,
		}
	}
	if v <= 0 {
		return 0, &ParseError{
			Source:  source,
			Line:    line,
			Field:   field,
			Message: fmt.Sprintf("must be positive, got %d", v),
		}
	}
	return v, nil
}

// SplitArgs splits the extra arguments column on whitespace, dropping empty tokens.
func SplitArgs(raw string) []string {
	return strings.Fields(raw)
}

// Window resolves an optional [start, end) row window over n rows. Negative
// bounds count from the end and out-of-range bounds are clamped.
func Window(n int, start, end *int) (int, int) {
	lo, hi := 0, n
	if start != nil {
		lo = clampIndex(*start, n)
	}
	if end != nil {
		hi = clampIndex(*end, n)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}
