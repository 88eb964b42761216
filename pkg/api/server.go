// Package api exposes the engine over HTTP. The surface is deliberately
// small: four task-lifecycle endpoints plus health, all JSON, mirroring
// the engine's responses without reshaping them.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quotelane/quotelane/pkg/flow"
	"github.com/quotelane/quotelane/pkg/logging"
)

// Server is the HTTP front end over one engine instance.
type Server struct {
	engine *flow.Engine
	logger *logging.Logger
	router *mux.Router
}

// New builds the server and its routes.
func New(engine *flow.Engine, logger *logging.Logger) *Server {
	if logger == nil {
		logger, _ = logging.NewLogger("api")
	}
	s := &Server{
		engine: engine,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/carriers", s.handleCarriers).Methods(http.MethodGet)

	tasks := s.router.PathPrefix("/tasks/{id}").Subrouter()
	tasks.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	tasks.HandleFunc("/step", s.handleStep).Methods(http.MethodPost)
	tasks.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	tasks.HandleFunc("/cleanup", s.handleCleanup).Methods(http.MethodPost)
}

// ServeHTTP makes Server a http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type startRequest struct {
	Carrier  string            `json:"carrier"`
	UserData map[string]string `json:"user_data"`
}

type stepRequest struct {
	UserData map[string]string `json:"user_data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCarriers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"carriers": s.engine.Carriers()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Carrier == "" {
		s.writeError(w, http.StatusBadRequest, "carrier is required")
		return
	}

	resp, err := s.engine.Start(r.Context(), taskID, req.Carrier, req.UserData)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.engine.Step(r.Context(), taskID, req.UserData)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Status(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type cleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	s.engine.Cleanup(taskID)
	s.writeJSON(w, http.StatusOK, cleanupResponse{
		Success: true,
		Message: "task " + taskID + " cleaned up",
	})
}

// writeEngineError maps engine sentinels to HTTP status codes. Anything
// unexpected is a 500; recoverable task failures never reach here because
// the engine reports them inside a normal response.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, flow.ErrUnknownCarrier):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Errorf("request failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}
