// Package render turns derived series and pivots into chart specifications.
// Specs are plain JSON-serializable data with no chart-library types, so any
// backend (the bundled PNG renderer, a browser-side library, or anything
// else) can consume them.
package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/rewired-gh/slotscope/internal/analytics"
	"github.com/rewired-gh/slotscope/internal/models"
)

const dateLabel = "2006-01-02"

// Overlay is one rolling-mean line drawn over the raw series.
type Overlay struct {
	Window int       `json:"window"`
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// LineSpec describes a time-series line chart with moving-average overlays.
type LineSpec struct {
	Title    string    `json:"title"`
	Dates    []string  `json:"dates"`
	Raw      []float64 `json:"raw"`
	Overlays []Overlay `json:"overlays"`
}

// NewLineSpec builds a line chart spec from a derived series.
func NewLineSpec(series *models.DerivedSeries) *LineSpec {
	spec := &LineSpec{
		Title: fmt.Sprintf("%s - %s #%s (%s)", series.Store, series.Model, series.MachineID, series.Metric),
	}
	for _, p := range series.Points {
		spec.Dates = append(spec.Dates, p.Date.Format(dateLabel))
		spec.Raw = append(spec.Raw, p.Raw)
	}
	for wi, w := range series.Windows {
		overlay := Overlay{
			Window: w,
			Label:  fmt.Sprintf("%d-day mean", w),
		}
		for _, p := range series.Points {
			overlay.Values = append(overlay.Values, p.Means[wi])
		}
		spec.Overlays = append(spec.Overlays, overlay)
	}
	return spec
}

// HeatmapSpec describes a machine-by-date heatmap. Absent cells are nil,
// never zero; renderers must leave them blank.
type HeatmapSpec struct {
	Title      string       `json:"title"`
	MachineIDs []string     `json:"machine_ids"`
	Dates      []string     `json:"dates"`
	Cells      [][]*float64 `json:"cells"`
	Min        float64      `json:"min"`
	Max        float64      `json:"max"`
}

// NewHeatmapSpec builds a heatmap spec from a pivot.
func NewHeatmapSpec(pivot *models.Pivot) *HeatmapSpec {
	spec := &HeatmapSpec{
		Title:      fmt.Sprintf("%s - %s (%s)", pivot.Store, pivot.Model, pivot.Metric),
		MachineIDs: pivot.MachineIDs,
	}
	for _, d := range pivot.Dates {
		spec.Dates = append(spec.Dates, d.Format(dateLabel))
	}
	spec.Cells = cellMatrix(pivot)
	spec.Min, spec.Max, _ = pivot.MinMax()
	return spec
}

// BubblePoint is one reported (date, machine, value) observation.
// Size follows the inherited scaling of value/10.
type BubblePoint struct {
	Date      string  `json:"date"`
	MachineID string  `json:"machine_id"`
	Value     float64 `json:"value"`
	Size      float64 `json:"size"`
}

// BubbleSpec describes a bubble chart of all reported observations; rows
// lacking the metric are dropped.
type BubbleSpec struct {
	Title  string        `json:"title"`
	Points []BubblePoint `json:"points"`
}

// NewBubbleSpec builds a bubble chart spec from a model view.
func NewBubbleSpec(view *models.FilteredView, metric string) *BubbleSpec {
	spec := &BubbleSpec{
		Title: fmt.Sprintf("%s - %s (%s)", view.Store, view.Model, metric),
	}
	for i := range view.Records {
		v, ok := view.Records[i].Metric(metric)
		if !ok {
			continue
		}
		spec.Points = append(spec.Points, BubblePoint{
			Date:      view.Records[i].Date.Format(dateLabel),
			MachineID: view.Records[i].MachineID,
			Value:     v,
			Size:      v / 10,
		})
	}
	return spec
}

// SurfaceSpec describes a 3-D surface: dates on X, machines on Y, metric
// values as the Z matrix indexed [machine][date], nil where absent.
type SurfaceSpec struct {
	Title string       `json:"title"`
	X     []string     `json:"x"`
	Y     []string     `json:"y"`
	Z     [][]*float64 `json:"z"`
}

// NewSurfaceSpec builds a surface spec from a pivot.
func NewSurfaceSpec(pivot *models.Pivot) *SurfaceSpec {
	spec := &SurfaceSpec{
		Title: fmt.Sprintf("%s - %s (%s)", pivot.Store, pivot.Model, pivot.Metric),
		Y:     pivot.MachineIDs,
	}
	for _, d := range pivot.Dates {
		spec.X = append(spec.X, d.Format(dateLabel))
	}
	spec.Z = cellMatrix(pivot)
	return spec
}

// Sparkline is one machine's mini time series within the grid.
type Sparkline struct {
	MachineID string    `json:"machine_id"`
	Dates     []string  `json:"dates"`
	Values    []float64 `json:"values"`
}

// SparklineGridSpec describes a grid of per-machine sparklines, one cell per
// machine, laid out in Columns columns.
type SparklineGridSpec struct {
	Title      string      `json:"title"`
	Columns    int         `json:"columns"`
	Sparklines []Sparkline `json:"sparklines"`
}

// NewSparklineGridSpec builds a sparkline grid spec from a model view.
// columns <= 0 defaults to 4.
func NewSparklineGridSpec(view *models.FilteredView, metric string, columns int) *SparklineGridSpec {
	if columns <= 0 {
		columns = 4
	}
	spec := &SparklineGridSpec{
		Title:   fmt.Sprintf("%s - %s (%s)", view.Store, view.Model, metric),
		Columns: columns,
	}
	for _, id := range view.Machines() {
		machine := analytics.FilterByMachine(view, id)
		type obs struct {
			date  time.Time
			value float64
		}
		var observations []obs
		for i := range machine.Records {
			if v, ok := machine.Records[i].Metric(metric); ok {
				observations = append(observations, obs{machine.Records[i].Date, v})
			}
		}
		sort.Slice(observations, func(i, j int) bool {
			return observations[i].date.Before(observations[j].date)
		})
		line := Sparkline{MachineID: id}
		for _, o := range observations {
			line.Dates = append(line.Dates, o.date.Format(dateLabel))
			line.Values = append(line.Values, o.value)
		}
		spec.Sparklines = append(spec.Sparklines, line)
	}
	return spec
}

// CalendarEntry is one day of the calendar heatmap.
type CalendarEntry struct {
	Date    string  `json:"date"`
	Year    int     `json:"year"`
	Week    int     `json:"week"`
	Weekday int     `json:"weekday"`
	Value   float64 `json:"value"`
}

// CalendarSpec describes a calendar heatmap of across-machine daily means.
type CalendarSpec struct {
	Title   string          `json:"title"`
	Entries []CalendarEntry `json:"entries"`
	Min     float64         `json:"min"`
	Max     float64         `json:"max"`
}

// NewCalendarSpec builds a calendar heatmap spec from daily means.
func NewCalendarSpec(store, model, metric string, means []analytics.DailyMean) *CalendarSpec {
	spec := &CalendarSpec{
		Title: fmt.Sprintf("%s - %s (%s)", store, model, metric),
	}
	for i, m := range means {
		year, week := m.Date.ISOWeek()
		spec.Entries = append(spec.Entries, CalendarEntry{
			Date:    m.Date.Format(dateLabel),
			Year:    year,
			Week:    week,
			Weekday: int(m.Date.Weekday()),
			Value:   m.Mean,
		})
		if i == 0 || m.Mean < spec.Min {
			spec.Min = m.Mean
		}
		if i == 0 || m.Mean > spec.Max {
			spec.Max = m.Mean
		}
	}
	return spec
}

func cellMatrix(pivot *models.Pivot) [][]*float64 {
	out := make([][]*float64, len(pivot.Cells))
	for i, row := range pivot.Cells {
		out[i] = make([]*float64, len(row))
		for j, c := range row {
			if c.Valid {
				v := c.Value
				out[i][j] = &v
			}
		}
	}
	return out
}
