package models

import (
	"fmt"
	"time"
)

// LoadError wraps any fetch or parse failure for a store resource. The
// original cause is preserved for errors.Is/As inspection.
type LoadError struct {
	Store string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Store, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// MissingColumnError reports a mandatory column absent from a loaded table.
type MissingColumnError struct {
	Store  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("store %s: mandatory column %q not found", e.Store, e.Column)
}

// AmbiguousValueError reports more than one source record for a single
// (machine, date) pivot cell under the fail duplicate policy.
type AmbiguousValueError struct {
	MachineID string
	Date      time.Time
	Metric    string
}

func (e *AmbiguousValueError) Error() string {
	return fmt.Sprintf("duplicate value for machine %s on %s (metric %q)",
		e.MachineID, e.Date.Format("2006-01-02"), e.Metric)
}

// DuplicatePolicy selects how pivot construction resolves multiple records
// sharing one (machine, date) pair.
type DuplicatePolicy int

const (
	// DuplicateFail rejects the pivot with an AmbiguousValueError.
	DuplicateFail DuplicatePolicy = iota
	// DuplicateLast keeps the last record in source order.
	DuplicateLast
	// DuplicateMean averages the duplicate values.
	DuplicateMean
)

// ParseDuplicatePolicy parses a policy name from configuration.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "fail":
		return DuplicateFail, nil
	case "last":
		return DuplicateLast, nil
	case "mean":
		return DuplicateMean, nil
	default:
		return DuplicateFail, fmt.Errorf("unknown duplicate policy %q (want fail, last, or mean)", s)
	}
}

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateLast:
		return "last"
	case DuplicateMean:
		return "mean"
	default:
		return "fail"
	}
}
