package adminapi

import "net/http"

// listGames handles GET /games.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.Store.ListGames(r.Context())
	if err != nil {
		s.logger().Error("listing games", "error", err)
		writeError(w, http.StatusInternalServerError, "listing games failed")
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// deleteGame handles DELETE /games/{id}.
func (s *Server) deleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint32(w, r, "id")
	if !ok {
		return
	}
	if err := s.Store.DeleteSession(r.Context(), id); err != nil {
		s.logger().Error("deleting game", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting game failed")
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
