package models

import (
	"time"
)

// DerivedPoint is one dated observation of a derived series. Means is
// parallel to the owning series' Windows slice.
type DerivedPoint struct {
	Date  time.Time `json:"date"`
	Raw   float64   `json:"raw"`
	Means []float64 `json:"means"`
}

// DerivedSeries is the rolling-average view of one machine and one metric:
// ascending by date, one point per source observation. Built fresh per
// request, never persisted.
type DerivedSeries struct {
	Store     string         `json:"store"`
	Model     string         `json:"model"`
	MachineID string         `json:"machine_id"`
	Metric    string         `json:"metric"`
	Windows   []int          `json:"windows"`
	Points    []DerivedPoint `json:"points"`
}

// PivotCell carries a single pivot value. Valid is false for (machine, date)
// combinations absent from the source view; such cells must never be read
// as zero.
type PivotCell struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Pivot maps machine (row) by date (column) to one metric's value.
// Cells is indexed [machine][date] following MachineIDs and Dates order.
type Pivot struct {
	Store      string        `json:"store"`
	Model      string        `json:"model"`
	Metric     string        `json:"metric"`
	MachineIDs []string      `json:"machine_ids"`
	Dates      []time.Time   `json:"dates"`
	Cells      [][]PivotCell `json:"cells"`
}

// Cell returns the value at (machineID, date) and whether it is present.
func (p *Pivot) Cell(machineID string, date time.Time) (float64, bool) {
	row := -1
	for i, id := range p.MachineIDs {
		if id == machineID {
			row = i
			break
		}
	}
	if row < 0 {
		return 0, false
	}
	for j, d := range p.Dates {
		if d.Equal(date) {
			c := p.Cells[row][j]
			return c.Value, c.Valid
		}
	}
	return 0, false
}

// MinMax returns the smallest and largest present cell values. ok is false
// when the pivot has no present cells.
func (p *Pivot) MinMax() (min, max float64, ok bool) {
	for _, row := range p.Cells {
		for _, c := range row {
			if !c.Valid {
				continue
			}
			if !ok {
				min, max, ok = c.Value, c.Value, true
				continue
			}
			if c.Value < min {
				min = c.Value
			}
			if c.Value > max {
				max = c.Value
			}
		}
	}
	return min, max, ok
}
