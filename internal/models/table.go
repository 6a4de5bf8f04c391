// Package models defines the core domain entities: records, tables, filtered
// views, derived series, and pivots.
package models

import (
	"errors"
	"sort"
	"strconv"
	"time"
)

// Record is one row of a store's operation export: one machine on one day.
// Metrics holds the numeric columns that vary by store; a metric absent from
// the source row is absent from the map, never stored as zero.
type Record struct {
	Date      time.Time          `json:"date"`
	Model     string             `json:"model"`
	MachineID string             `json:"machine_id"`
	Store     string             `json:"store"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Metric returns the named metric value and whether the row carries it.
func (r *Record) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// Validate checks record field constraints.
func (r *Record) Validate() error {
	if r.Date.IsZero() {
		return errors.New("record date must not be zero")
	}
	if r.Model == "" {
		return errors.New("record model must not be empty")
	}
	if r.MachineID == "" {
		return errors.New("record machine ID must not be empty")
	}
	return nil
}

// Table is the ordered set of records loaded from one store resource.
// MetricColumns is the validated enumeration of numeric metric columns found
// at load time; metric selection is restricted to this set rather than
// free-form column lookup.
type Table struct {
	Store         string    `json:"store"`
	Records       []Record  `json:"records"`
	Columns       []string  `json:"columns"`
	MetricColumns []string  `json:"metric_columns"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Models returns the distinct model names in first-seen order.
func (t *Table) Models() []string {
	seen := make(map[string]bool, len(t.Records))
	var out []string
	for i := range t.Records {
		m := t.Records[i].Model
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// HasMetric reports whether name is one of the table's metric columns.
func (t *Table) HasMetric(name string) bool {
	for _, c := range t.MetricColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Validate checks table field constraints.
func (t *Table) Validate() error {
	if t.Store == "" {
		return errors.New("table store must not be empty")
	}
	if len(t.MetricColumns) == 0 {
		return errors.New("table must expose at least one metric column")
	}
	for i := range t.Records {
		if err := t.Records[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FilteredView is a non-owning selection of a table's records for one model,
// optionally narrowed to one machine. Record order matches the source table.
type FilteredView struct {
	Store     string   `json:"store"`
	Model     string   `json:"model"`
	MachineID string   `json:"machine_id,omitempty"`
	Records   []Record `json:"records"`
}

// Empty reports whether the view selected zero rows. An empty view is a
// valid outcome, not an error.
func (v *FilteredView) Empty() bool {
	return len(v.Records) == 0
}

// Machines returns the distinct machine IDs in the view, sorted numerically
// when every ID parses as an integer, lexically otherwise.
func (v *FilteredView) Machines() []string {
	seen := make(map[string]bool, len(v.Records))
	var out []string
	for i := range v.Records {
		id := v.Records[i].MachineID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sortMachineIDs(out)
	return out
}

func sortMachineIDs(ids []string) {
	numeric := true
	nums := make(map[string]int, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			numeric = false
			break
		}
		nums[id] = n
	}
	sort.Slice(ids, func(i, j int) bool {
		if numeric {
			return nums[ids[i]] < nums[ids[j]]
		}
		return ids[i] < ids[j]
	})
}
