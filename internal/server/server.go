// Package server serves the interactive dashboard: HTML pages for store,
// model, machine, and metric selection, JSON APIs exposing the derived data,
// and PNG chart endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/rewired-gh/slotscope/internal/config"
	"github.com/rewired-gh/slotscope/internal/loader"
	"github.com/rewired-gh/slotscope/internal/logger"
	"github.com/rewired-gh/slotscope/internal/models"
)

// Server wires the loader and analytics into the HTTP dashboard.
type Server struct {
	loader     *loader.Client
	policy     models.DuplicatePolicy
	httpServer *http.Server
}

// New builds the server and its router.
func New(cfg config.ServerConfig, l *loader.Client, policy models.DuplicatePolicy) *Server {
	s := &Server{
		loader: l,
		policy: policy,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/store/{store}", s.handleStore).Methods("GET")

	r.HandleFunc("/api/stores", s.handleStores).Methods("GET")
	r.HandleFunc("/api/store/{store}/columns", s.handleColumns).Methods("GET")
	r.HandleFunc("/api/store/{store}/models", s.handleModels).Methods("GET")
	r.HandleFunc("/api/store/{store}/machines", s.handleMachines).Methods("GET")
	r.HandleFunc("/api/store/{store}/series", s.handleSeries).Methods("GET")
	r.HandleFunc("/api/store/{store}/pivot", s.handlePivot).Methods("GET")
	r.HandleFunc("/api/store/{store}/chart", s.handleChartSpec).Methods("GET")

	r.HandleFunc("/chart/{store}/line.png", s.handleLinePNG).Methods("GET")
	r.HandleFunc("/chart/{store}/spark.png", s.handleSparkPNG).Methods("GET")

	r.HandleFunc("/admin/refresh/{store}", s.handleRefresh).Methods("POST")
	r.HandleFunc("/admin/refresh", s.handleRefreshAll).Methods("POST")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	handler := handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stderr, r))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.Info("Dashboard listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// writeError maps core errors onto HTTP statuses. A failed interaction never
// takes the process down; the loader cache is untouched.
func writeError(w http.ResponseWriter, err error) {
	var (
		missing   *models.MissingColumnError
		ambiguous *models.AmbiguousValueError
		load      *models.LoadError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &missing):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &ambiguous):
		status = http.StatusConflict
	case errors.As(err, &load):
		status = http.StatusBadGateway
	}
	logger.Error("Request failed: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// loadTable is the shared table lookup for handlers.
func (s *Server) loadTable(r *http.Request) (*models.Table, error) {
	store := mux.Vars(r)["store"]
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	return s.loader.Load(ctx, store)
}
