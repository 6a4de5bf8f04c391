package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/rewired-gh/slotscope/internal/analytics"
	"github.com/rewired-gh/slotscope/internal/logger"
	"github.com/rewired-gh/slotscope/internal/models"
	"github.com/rewired-gh/slotscope/internal/render"
)

type heatmapCell struct {
	Label string
	Color string
}

type heatmapRow struct {
	MachineID string
	Cells     []heatmapCell
}

type heatmapView struct {
	Dates []string
	Rows  []heatmapRow
}

type calendarDay struct {
	Date    string
	Label   string
	Color   string
	Present bool
}

type calendarRow struct {
	Label string
	Days  [7]calendarDay
}

type sparkTile struct {
	MachineID string
	URL       string
}

type storePage struct {
	Store     string
	FetchedAt string
	Models    []string
	Machines  []string
	Metrics   []string
	Charts    []string
	Sel       selection

	Empty bool

	LineURL     string
	Heatmap     *heatmapView
	BubbleJSON  template.JS
	SurfaceJSON template.JS
	SparkTiles  []sparkTile
	Calendar    []calendarRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	renderPage(w, tmplIndex, map[string]any{"Stores": s.loader.Stores()})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		renderError(w, http.StatusBadGateway, err)
		return
	}

	sel := resolveSelection(r, table)
	view := analytics.FilterByModel(table, sel.Model)
	machines := view.Machines()
	if sel.Machine == "" && len(machines) > 0 {
		sel.Machine = machines[0]
	}

	page := &storePage{
		Store:     table.Store,
		FetchedAt: table.FetchedAt.Format("2006-01-02 15:04"),
		Models:    table.Models(),
		Machines:  machines,
		Metrics:   table.MetricColumns,
		Charts:    chartTypes,
		Sel:       sel,
		Empty:     view.Empty(),
	}

	if !page.Empty {
		if err := s.buildChart(page, view, sel); err != nil {
			var ambiguous *models.AmbiguousValueError
			status := http.StatusInternalServerError
			if errors.As(err, &ambiguous) {
				status = http.StatusConflict
			}
			renderError(w, status, err)
			return
		}
	}

	renderPage(w, tmplStore, page)
}

func (s *Server) buildChart(page *storePage, view *models.FilteredView, sel selection) error {
	params := url.Values{}
	params.Set("model", sel.Model)
	params.Set("machine", sel.Machine)
	params.Set("metric", sel.Metric)

	switch sel.Chart {
	case "line":
		page.LineURL = fmt.Sprintf("/chart/%s/line.png?%s", url.PathEscape(sel.Store), params.Encode())

	case "heatmap":
		pivot, err := analytics.BuildPivot(view, sel.Metric, s.policy)
		if err != nil {
			return err
		}
		page.Heatmap = buildHeatmapView(render.NewHeatmapSpec(pivot))

	case "bubble":
		data, err := json.Marshal(render.NewBubbleSpec(view, sel.Metric))
		if err != nil {
			return err
		}
		page.BubbleJSON = template.JS(data) //nolint:gosec // marshaled from our own spec types

	case "surface":
		pivot, err := analytics.BuildPivot(view, sel.Metric, s.policy)
		if err != nil {
			return err
		}
		data, err := json.Marshal(render.NewSurfaceSpec(pivot))
		if err != nil {
			return err
		}
		page.SurfaceJSON = template.JS(data) //nolint:gosec // marshaled from our own spec types

	case "spark":
		for _, id := range view.Machines() {
			p := url.Values{}
			p.Set("model", sel.Model)
			p.Set("machine", id)
			p.Set("metric", sel.Metric)
			page.SparkTiles = append(page.SparkTiles, sparkTile{
				MachineID: id,
				URL:       fmt.Sprintf("/chart/%s/spark.png?%s", url.PathEscape(sel.Store), p.Encode()),
			})
		}

	case "calendar":
		means := analytics.DailyMeans(view, sel.Metric)
		page.Calendar = buildCalendarRows(render.NewCalendarSpec(sel.Store, sel.Model, sel.Metric, means))
	}
	return nil
}

func buildHeatmapView(spec *render.HeatmapSpec) *heatmapView {
	view := &heatmapView{Dates: spec.Dates}
	for i, id := range spec.MachineIDs {
		row := heatmapRow{MachineID: id}
		for _, cell := range spec.Cells[i] {
			if cell == nil {
				row.Cells = append(row.Cells, heatmapCell{})
				continue
			}
			row.Cells = append(row.Cells, heatmapCell{
				Label: fmt.Sprintf("%.0f", *cell),
				Color: heatColor(*cell, spec.Min, spec.Max),
			})
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}

// buildCalendarRows groups calendar entries into ISO-week rows with Monday
// in the first column.
func buildCalendarRows(spec *render.CalendarSpec) []calendarRow {
	index := make(map[string]int)
	var rows []calendarRow
	for _, e := range spec.Entries {
		key := fmt.Sprintf("%d-W%02d", e.Year, e.Week)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, calendarRow{Label: key})
		}
		// time.Weekday is Sunday-based; shift Monday into column 0.
		col := (e.Weekday + 6) % 7
		rows[i].Days[col] = calendarDay{
			Date:    e.Date,
			Label:   fmt.Sprintf("%.0f", e.Value),
			Color:   heatColor(e.Value, spec.Min, spec.Max),
			Present: true,
		}
	}
	return rows
}

// heatColor maps a value onto a blue-to-red scale.
func heatColor(v, min, max float64) string {
	t := 0.5
	if max > min {
		t = (v - min) / (max - min)
	}
	hue := int(210 * (1 - t))
	return fmt.Sprintf("hsl(%d,70%%,55%%)", hue)
}

func renderPage(w http.ResponseWriter, tmplStr string, data any) {
	t, err := template.New("page").Funcs(funcMap).Parse(tmplBase + tmplStr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		logger.Error("Template error: %v", err)
	}
}

func renderError(w http.ResponseWriter, status int, err error) {
	logger.Error("Interaction failed: %v", err)
	w.WriteHeader(status)
	renderPage(w, tmplError, map[string]any{"Message": err.Error()})
}
