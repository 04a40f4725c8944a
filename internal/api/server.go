package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/ledger"
	"RoomLedger/internal/logger"
	"RoomLedger/internal/merkle"
	"RoomLedger/internal/store"
)

const (
	// maxBodySize is the maximum request body size in bytes.
	maxBodySize = 1 << 20 // 1 MB

	// healthTimeout bounds the store ping of GET /health.
	healthTimeout = 2 * time.Second
)

// Ledger is the floor service the API exposes.
type Ledger interface {
	Ping(ctx context.Context) error
	CreateFloor(ctx context.Context, number string) (floor.State, error)
	Floors(ctx context.Context) ([]floor.State, error)
	Floor(ctx context.Context, id string) (floor.State, error)
	RemoveFloor(ctx context.Context, id string) error
	ReplaceRooms(ctx context.Context, id string, expectedVersion uint64, rooms []floor.Room) (floor.State, error)
	AddRoom(ctx context.Context, id string, expectedVersion uint64, room floor.Room) (floor.State, error)
	UpdateRoom(ctx context.Context, id string, expectedVersion uint64, index int, patch floor.RoomPatch) (floor.State, error)
	RemoveRoom(ctx context.Context, id string, expectedVersion uint64, index int) (floor.State, error)
	MoveRoom(ctx context.Context, id string, expectedVersion uint64, from, to int) (floor.State, error)
	ProveRoom(ctx context.Context, id string, index int) (ledger.RoomProof, error)
	VerifyRoom(room floor.Room, index int, proof merkle.Proof, root merkle.Hash) (bool, error)
	Audit(ctx context.Context) (ledger.AuditReport, error)
}

// Server is the HTTP API server.
type Server struct {
	addr    string       // addr is the HTTP listen address
	ledger  Ledger       // ledger serves floor reads and mutations
	metrics http.Handler // metrics serves /metrics, nil disables the route
	server  *http.Server // server is the underlying HTTP server
}

// New creates a new HTTP API server. metrics may be nil.
func New(addr string, l Ledger, metrics http.Handler) *Server {
	return &Server{
		addr:    addr,
		ledger:  l,
		metrics: metrics,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /audit", s.handleAudit)

	mux.HandleFunc("GET /floors", s.handleListFloors)
	mux.HandleFunc("POST /floors", s.handleCreateFloor)
	mux.HandleFunc("GET /floors/{id}", s.handleGetFloor)
	mux.HandleFunc("DELETE /floors/{id}", s.handleRemoveFloor)

	mux.HandleFunc("PUT /floors/{id}/rooms", s.handleReplaceRooms)
	mux.HandleFunc("POST /floors/{id}/rooms", s.handleAddRoom)
	mux.HandleFunc("PATCH /floors/{id}/rooms/{index}", s.handleUpdateRoom)
	mux.HandleFunc("DELETE /floors/{id}/rooms/{index}", s.handleRemoveRoom)
	mux.HandleFunc("POST /floors/{id}/rooms/{index}/move", s.handleMoveRoom)

	mux.HandleFunc("GET /floors/{id}/rooms/{index}/proof", s.handleProveRoom)
	mux.HandleFunc("POST /proofs/verify", s.handleVerifyProof)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.ledger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleAudit handles GET /audit requests.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Audit(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeFailure maps a service error to its HTTP status and writes it.
// Stale versions report the current version so the client can reload.
func writeFailure(w http.ResponseWriter, err error) {
	var conflict *floor.ConcurrencyError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          err.Error(),
			"expected":       conflict.Expected,
			"currentVersion": conflict.Actual,
		})

		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, floor.ErrMalformedRecord),
		errors.Is(err, floor.ErrRoomIndex),
		errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, merkle.ErrMalformedProof),
		errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
