package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLatencyStats(w http.ResponseWriter, r *http.Request) {
	latency := s.runner.Latency()
	if latency == nil {
		jsonError(w, "latency stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"window":      s.cfg.LatencyWindow.String(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"operations":  latency.SnapshotAll(),
	})
}
