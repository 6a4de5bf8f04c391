// Package analytics narrows loaded tables to user selections and derives
// rolling-average series and machine-by-date pivots from them.
package analytics

import (
	"sort"
	"time"

	"github.com/rewired-gh/slotscope/internal/models"
)

// DefaultWindows are the rolling-mean window sizes shown on the dashboard.
var DefaultWindows = []int{7, 14}

// FilterByModel returns the view of table narrowed to one model. Source row
// order is preserved. A model absent from the table yields an empty view,
// not an error.
func FilterByModel(table *models.Table, model string) *models.FilteredView {
	view := &models.FilteredView{
		Store: table.Store,
		Model: model,
	}
	for i := range table.Records {
		if table.Records[i].Model == model {
			view.Records = append(view.Records, table.Records[i])
		}
	}
	return view
}

// FilterByMachine narrows a model view to a single machine unit.
func FilterByMachine(view *models.FilteredView, machineID string) *models.FilteredView {
	out := &models.FilteredView{
		Store:     view.Store,
		Model:     view.Model,
		MachineID: machineID,
	}
	for i := range view.Records {
		if view.Records[i].MachineID == machineID {
			out.Records = append(out.Records, view.Records[i])
		}
	}
	return out
}

// ComputeRollingAverages derives the rolling-mean series for one machine and
// one metric. The input need not be sorted; the engine orders it by date
// itself. For each window size w the mean is taken over the most recent
// min(w, i+1) present observations, so the head of the series is clipped
// rather than undefined. Windows operate over reporting events, not calendar
// days: absent dates are not gap-filled.
func ComputeRollingAverages(view *models.FilteredView, metric string, windows []int) *models.DerivedSeries {
	if len(windows) == 0 {
		windows = DefaultWindows
	}

	type obs struct {
		date  time.Time
		value float64
	}
	var observations []obs
	for i := range view.Records {
		v, ok := view.Records[i].Metric(metric)
		if !ok {
			continue
		}
		observations = append(observations, obs{date: view.Records[i].Date, value: v})
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].date.Before(observations[j].date)
	})

	series := &models.DerivedSeries{
		Store:     view.Store,
		Model:     view.Model,
		MachineID: view.MachineID,
		Metric:    metric,
		Windows:   windows,
	}

	// Prefix sums keep each window mean O(1).
	prefix := make([]float64, len(observations)+1)
	for i, o := range observations {
		prefix[i+1] = prefix[i] + o.value
	}

	for i, o := range observations {
		point := models.DerivedPoint{
			Date:  o.date,
			Raw:   o.value,
			Means: make([]float64, len(windows)),
		}
		for wi, w := range windows {
			lo := i + 1 - w
			if lo < 0 {
				lo = 0
			}
			n := i + 1 - lo
			point.Means[wi] = (prefix[i+1] - prefix[lo]) / float64(n)
		}
		series.Points = append(series.Points, point)
	}
	return series
}

// BuildPivot groups a model view into a machine-by-date grid for one metric.
// Machine rows are ordered as FilteredView.Machines orders them; date columns
// ascend. Combinations absent from the view stay marked invalid rather than
// being coerced to zero. Duplicate (machine, date) pairs are resolved by
// policy; the fail policy returns an AmbiguousValueError naming the cell.
func BuildPivot(view *models.FilteredView, metric string, policy models.DuplicatePolicy) (*models.Pivot, error) {
	machines := view.Machines()

	dateSet := make(map[time.Time]bool)
	for i := range view.Records {
		if _, ok := view.Records[i].Metric(metric); ok {
			dateSet[view.Records[i].Date] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIndex := make(map[string]int, len(machines))
	for i, id := range machines {
		rowIndex[id] = i
	}
	colIndex := make(map[time.Time]int, len(dates))
	for j, d := range dates {
		colIndex[d] = j
	}

	pivot := &models.Pivot{
		Store:      view.Store,
		Model:      view.Model,
		Metric:     metric,
		MachineIDs: machines,
		Dates:      dates,
		Cells:      make([][]models.PivotCell, len(machines)),
	}
	for i := range pivot.Cells {
		pivot.Cells[i] = make([]models.PivotCell, len(dates))
	}

	counts := make([][]int, len(machines))
	for i := range counts {
		counts[i] = make([]int, len(dates))
	}

	for idx := range view.Records {
		rec := &view.Records[idx]
		v, ok := rec.Metric(metric)
		if !ok {
			continue
		}
		i := rowIndex[rec.MachineID]
		j := colIndex[rec.Date]
		counts[i][j]++
		if counts[i][j] > 1 {
			switch policy {
			case models.DuplicateFail:
				return nil, &models.AmbiguousValueError{
					MachineID: rec.MachineID,
					Date:      rec.Date,
					Metric:    metric,
				}
			case models.DuplicateMean:
				n := float64(counts[i][j])
				pivot.Cells[i][j].Value = pivot.Cells[i][j].Value*(n-1)/n + v/n
			default: // DuplicateLast
				pivot.Cells[i][j].Value = v
			}
			continue
		}
		pivot.Cells[i][j] = models.PivotCell{Value: v, Valid: true}
	}
	return pivot, nil
}

// DailyMean is the across-machine mean of a metric for one date.
type DailyMean struct {
	Date time.Time `json:"date"`
	Mean float64   `json:"mean"`
}

// DailyMeans averages a metric across all machines of a view per date,
// ascending by date. Rows lacking the metric are excluded. Feeds the
// calendar heatmap.
func DailyMeans(view *models.FilteredView, metric string) []DailyMean {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for i := range view.Records {
		v, ok := view.Records[i].Metric(metric)
		if !ok {
			continue
		}
		d := view.Records[i].Date
		sums[d] += v
		counts[d]++
	}
	out := make([]DailyMean, 0, len(sums))
	for d, sum := range sums {
		out = append(out, DailyMean{Date: d, Mean: sum / float64(counts[d])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
