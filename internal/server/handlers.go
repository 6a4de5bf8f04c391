package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/slotscope/internal/analytics"
	"github.com/rewired-gh/slotscope/internal/logger"
	"github.com/rewired-gh/slotscope/internal/models"
	"github.com/rewired-gh/slotscope/internal/render"
)

var chartTypes = []string{"line", "heatmap", "bubble", "surface", "spark", "calendar"}

// selection is one user interaction: a store plus the chosen dimensions.
type selection struct {
	Store   string
	Model   string
	Machine string
	Metric  string
	Chart   string
}

// resolveSelection fills unset dimensions with the table's first offered
// choice, the way the dashboard's select boxes default.
func resolveSelection(r *http.Request, table *models.Table) selection {
	q := r.URL.Query()
	sel := selection{
		Store:   table.Store,
		Model:   q.Get("model"),
		Machine: q.Get("machine"),
		Metric:  q.Get("metric"),
		Chart:   q.Get("chart"),
	}
	if sel.Model == "" {
		if ms := table.Models(); len(ms) > 0 {
			sel.Model = ms[0]
		}
	}
	if !table.HasMetric(sel.Metric) {
		sel.Metric = table.MetricColumns[0]
	}
	valid := false
	for _, c := range chartTypes {
		if sel.Chart == c {
			valid = true
			break
		}
	}
	if !valid {
		sel.Chart = "line"
	}
	return sel
}

// requireParams returns a non-nil error listing any missing query params.
func requireParams(r *http.Request, names ...string) error {
	for _, n := range names {
		if r.URL.Query().Get(n) == "" {
			return fmt.Errorf("missing query parameter %q", n)
		}
	}
	return nil
}

// ── JSON API ─────────────────────────────────────────────────────────────────

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"stores": s.loader.Stores()})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"columns":        table.Columns,
		"metric_columns": table.MetricColumns,
		"fetched_at":     table.FetchedAt,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"models": table.Models()})
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "model"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view := analytics.FilterByModel(table, r.URL.Query().Get("model"))
	writeJSON(w, map[string]any{
		"machines": view.Machines(),
		"empty":    view.Empty(),
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "model", "machine", "metric"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	series, err := s.machineSeries(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, series)
}

func (s *Server) handlePivot(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "model", "metric"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	metric := q.Get("metric")
	if !table.HasMetric(metric) {
		http.Error(w, fmt.Sprintf("unknown metric %q", metric), http.StatusBadRequest)
		return
	}
	view := analytics.FilterByModel(table, q.Get("model"))
	pivot, err := analytics.BuildPivot(view, metric, s.policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, pivot)
}

func (s *Server) handleChartSpec(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "type", "model", "metric"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	metric := q.Get("metric")
	if !table.HasMetric(metric) {
		http.Error(w, fmt.Sprintf("unknown metric %q", metric), http.StatusBadRequest)
		return
	}
	view := analytics.FilterByModel(table, q.Get("model"))

	switch q.Get("type") {
	case "line":
		machine := q.Get("machine")
		if machine == "" {
			http.Error(w, `line charts need a "machine" parameter`, http.StatusBadRequest)
			return
		}
		series := analytics.ComputeRollingAverages(
			analytics.FilterByMachine(view, machine), metric, analytics.DefaultWindows)
		writeJSON(w, render.NewLineSpec(series))
	case "heatmap":
		pivot, err := analytics.BuildPivot(view, metric, s.policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, render.NewHeatmapSpec(pivot))
	case "bubble":
		writeJSON(w, render.NewBubbleSpec(view, metric))
	case "surface":
		pivot, err := analytics.BuildPivot(view, metric, s.policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, render.NewSurfaceSpec(pivot))
	case "spark":
		writeJSON(w, render.NewSparklineGridSpec(view, metric, 4))
	case "calendar":
		means := analytics.DailyMeans(view, metric)
		writeJSON(w, render.NewCalendarSpec(view.Store, view.Model, metric, means))
	default:
		http.Error(w, fmt.Sprintf("unknown chart type %q", q.Get("type")), http.StatusBadRequest)
	}
}

// machineSeries computes the rolling-average series for the query's
// (model, machine, metric) triple.
func (s *Server) machineSeries(r *http.Request) (*models.DerivedSeries, error) {
	table, err := s.loadTable(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	metric := q.Get("metric")
	if !table.HasMetric(metric) {
		return nil, &models.MissingColumnError{Store: table.Store, Column: metric}
	}
	view := analytics.FilterByMachine(
		analytics.FilterByModel(table, q.Get("model")), q.Get("machine"))
	return analytics.ComputeRollingAverages(view, metric, analytics.DefaultWindows), nil
}

// ── PNG charts ───────────────────────────────────────────────────────────────

func (s *Server) handleLinePNG(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "model", "machine", "metric"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	series, err := s.machineSeries(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.RenderLinePNG(series, w); err != nil {
		logger.Warn("Line render failed: %v", err)
	}
}

func (s *Server) handleSparkPNG(w http.ResponseWriter, r *http.Request) {
	if err := requireParams(r, "model", "machine", "metric"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := s.loadTable(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	view := analytics.FilterByMachine(
		analytics.FilterByModel(table, q.Get("model")), q.Get("machine"))
	w.Header().Set("Content-Type", "image/png")
	if err := render.RenderSparklinePNG(view, q.Get("metric"), w); err != nil {
		logger.Warn("Sparkline render failed: %v", err)
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	store := mux.Vars(r)["store"]
	s.loader.Invalidate(store)
	logger.Info("Cache invalidated for %s", store)
	writeJSON(w, map[string]string{"status": "invalidated", "store": store})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	s.loader.InvalidateAll()
	logger.Info("Cache invalidated for all stores")
	writeJSON(w, map[string]string{"status": "invalidated"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
