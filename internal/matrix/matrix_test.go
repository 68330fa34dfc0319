package matrix

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

const sampleMatrix = `queue_example,baseline,main,60,120,
queue_example,dynamosa,feature/dynamosa,60,120,--algorithm DYNAMOSA  --log-file={experiment_path}/log.txt
"pkg.mod",quoted,"release 1",30, 45 ,"-a  -b"
`

func TestParsePreservesOrderAndFields(t *testing.T) {
	exps, err := Parse(strings.NewReader(sampleMatrix), "modules.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(exps) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(exps))
	}

	first := exps[0]
	if first.ModuleName != "queue_example" || first.ExperimentName != "baseline" || first.BranchName != "main" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.MaximumSearchTime != 60 || first.Timeout != 120 || len(first.ExtraArgs) != 0 || first.Line != 1 {
		t.Fatalf("unexpected first row %+v", first)
	}

	wantArgs := []string{"--algorithm", "DYNAMOSA", "--log-file={experiment_path}/log.txt"}
	if !reflect.DeepEqual(exps[1].ExtraArgs, wantArgs) {
		t.Fatalf("extra args = %q, want %q", exps[1].ExtraArgs, wantArgs)
	}

	third := exps[2]
	if third.BranchName != "release 1" || third.Timeout != 45 || third.Line != 3 {
		t.Fatalf("unexpected third row %+v", third)
	}
	if !reflect.DeepEqual(third.ExtraArgs, []string{"-a", "-b"}) {
		t.Fatalf("unexpected third row args %q", third.ExtraArgs)
	}
}

func TestParseRejectsNonIntegerTimeout(t *testing.T) {
	input := "m,e,main,60,120,\nm,e2,main,60,soon,\n"
	_, err := Parse(strings.NewReader(input), "modules.csv")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Line != 2 || pe.Field != "timeout" {
		t.Fatalf("unexpected location %+v", pe)
	}
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("expected wrapped strconv error, got %v", err)
	}
	if !strings.Contains(err.Error(), `modules.csv:2: timeout: "soon" is not an integer`) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseRejectsWrongColumnCount(t *testing.T) {
	_, err := Parse(strings.NewReader("m,e,main,60,120\n"), "short.csv")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 1 {
		t.Fatalf("expected ParseError on line 1, got %v", err)
	}
	if !strings.Contains(pe.Message, "expected 6 columns, got 5") {
		t.Fatalf("unexpected message %q", pe.Message)
	}
}

func TestParseRejectsEmptyBranchAndNonPositive(t *testing.T) {
	cases := map[string]string{
		"m,e,,60,120,\n":   "branch_name",
		"m,e,main,0,120,\n": "maximum_search_time",
		"m,e,main,60,-5,\n": "timeout",
	}
	for input, field := range cases {
		_, err := Parse(strings.NewReader(input), "x.csv")
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Field != field {
			t.Fatalf("input %q: expected ParseError on %s, got %v", input, field, err)
		}
	}
}

func TestParseRejectsUnterminatedQuote(t *testing.T) {
	_, err := Parse(strings.NewReader("m,\"unterminated,main,60,120,\n"), "bad.csv")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseAcceptsQuotesInsideExtraArgs(t *testing.T) {
	exps, err := Parse(strings.NewReader("pkg.mod,exp,main,60,120,--seed-arg=\"x\" --report={experiment_path}\n"), "modules.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(exps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(exps))
	}
	want := []string{`--seed-arg="x"`, "--report={experiment_path}"}
	if !reflect.DeepEqual(exps[0].ExtraArgs, want) {
		t.Fatalf("extra args = %q, want %q", exps[0].ExtraArgs, want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.csv")
	if err := os.WriteFile(path, []byte(sampleMatrix), 0o644); err != nil {
		t.Fatal(err)
	}
	exps, err := Load(path)
	if err != nil || len(exps) != 3 {
		t.Fatalf("Load = %d rows, %v", len(exps), err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSplitArgs(t *testing.T) {
	if got := SplitArgs("  "); len(got) != 0 {
		t.Fatalf("expected no args, got %q", got)
	}
	if got := SplitArgs(" --a  b "); !reflect.DeepEqual(got, []string{"--a", "b"}) {
		t.Fatalf("unexpected split %q", got)
	}
}

func intp(i int) *int { return &i }

func TestWindow(t *testing.T) {
	cases := []struct {
		name       string
		start, end *int
		lo, hi     int
	}{
		{"full", nil, nil, 0, 5},
		{"middle", intp(2), intp(4), 2, 4},
		{"start only", intp(3), nil, 3, 5},
		{"end past length", intp(1), intp(50), 1, 5},
		{"negative start", intp(-2), nil, 3, 5},
		{"negative end", nil, intp(-1), 0, 4},
		{"very negative", intp(-99), intp(2), 0, 2},
		{"inverted", intp(4), intp(2), 2, 2},
	}
	for _, tc := range cases {
		lo, hi := Window(5, tc.start, tc.end)
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("%s: Window = [%d,%d), want [%d,%d)", tc.name, lo, hi, tc.lo, tc.hi)
		}
	}
}
