package batch

import "fmt"

// SwitchPolicy decides what happens to a row whose branch switch failed.
type SwitchPolicy string

const (
	// SwitchContinue runs the row's repetitions anyway with whatever is installed.
	SwitchContinue SwitchPolicy = "continue"
	// SwitchSkipRow skips every repetition of the row but still consumes its seeds.
	SwitchSkipRow SwitchPolicy = "skip-row"
	// SwitchAbort stops the batch.
	SwitchAbort SwitchPolicy = "abort"
)

// IncompletePolicy decides what happens to a run directory left behind by an
// interrupted run.
type IncompletePolicy string

const (
	// IncompleteRerun removes the directory and runs the repetition again.
	IncompleteRerun IncompletePolicy = "rerun"
	// IncompleteSkip treats the directory as done.
	IncompleteSkip IncompletePolicy = "skip"
)

// ParseSwitchPolicy validates a switch failure policy name.
func ParseSwitchPolicy(raw string) (SwitchPolicy, error) {
	switch p := SwitchPolicy(raw); p {
	case SwitchContinue, SwitchSkipRow, SwitchAbort:
		return p, nil
	case "":
		return SwitchContinue, nil
	default:
		return "", fmt.Errorf("unknown switch failure policy %q (want continue, skip-row or abort)", raw)
	}
}

// ParseIncompletePolicy validates an incomplete run policy name.
func ParseIncompletePolicy(raw string) (IncompletePolicy, error) {
	switch p := IncompletePolicy(raw); p {
	case IncompleteRerun, IncompleteSkip:
		return p, nil
	case "":
		return IncompleteRerun, nil
	default:
		return "", fmt.Errorf("unknown incomplete run policy %q (want rerun or skip)", raw)
	}
}
