package adminapi

import (
	"net/http"
	"time"
)

// healthz handles GET /healthz, left unauthenticated so orchestrators
// can probe liveness without the admin token.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"uptime": time.Since(s.StartedAt).Round(time.Second).String(),
	})
}

// version handles GET /version, a reachability probe that doubles as a
// build-identification endpoint for the launcher.
func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	online := 0
	if s.Online != nil {
		online = s.Online.Count()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":      s.Version,
		"online_count": online,
	})
}
