package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/buildgrid/ngexec/internal/pool"
	"github.com/buildgrid/ngexec/internal/runner"
)

// Server exposes the command runner and pool over HTTP for ngexec.
type Server struct {
	runner *runner.CommandRunner
	pool   *pool.Pool
	mux    *http.ServeMux
}

func NewServer(r *runner.CommandRunner, p *pool.Pool) *Server {
	s := &Server{
		runner: r,
		pool:   p,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("GET /servers", s.handleServers)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: err.Error()})
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	log.Printf("Run %q (correlation %s)", req.Request.Description, req.CorrelationID)
	result, err := s.runner.Run(r.Context(), req.Request, req.CorrelationID)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, RunResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Result: result})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	entries := s.pool.Entries()
	statuses := make([]ServerStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, ServerStatus{
			Name:        e.Name,
			Fingerprint: e.Fingerprint.Hash,
			Port:        e.Port,
			Pid:         e.Pid,
			Alive:       e.Alive(),
			Workdir:     e.Workdir,
			StartedAt:   e.StartedAt,
		})
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func FormatAddr(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func ListenAndServe(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // long-running runs and the websocket stream
	}
	log.Printf("API server listening on %s", addr)
	return srv.ListenAndServe()
}
