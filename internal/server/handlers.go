package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth reports ok, or degraded when the checkpoint store is
// unreachable. Always 200: degraded is operational information, not an
// outage signal for load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("checkpoint store unreachable",
				"request_id", RequestIDFromContext(r.Context()), "error", err)
			status = "degraded"
		}
	}
	s.writeJSON(w, r, map[string]string{"status": status})
}

// handleStatus returns the live migration snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.status.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response",
			"request_id", RequestIDFromContext(r.Context()), "error", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}
