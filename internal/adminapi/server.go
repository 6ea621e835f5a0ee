package adminapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// OnlineCounter reports how many principals currently hold a live
// PRUDP connection. Satisfied by *registry.Registry.
type OnlineCounter interface {
	Count() int
}

// Server holds the admin plane's dependencies and builds its router.
type Server struct {
	Store       Store
	BearerToken string
	Version     string
	StartedAt   time.Time
	Online      OnlineCounter
	Logger      *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Router builds the mux.Router serving every admin-plane endpoint
// (spec §6 "Out-of-band admin RPC plane").
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/version", s.version).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginUser).Methods(http.MethodPost)
	r.HandleFunc("/register", s.registerUser).Methods(http.MethodPost)

	admin := r.PathPrefix("/").Subrouter()
	admin.Use(requireBearerToken(s.BearerToken))
	admin.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", s.deleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{id}/disable", s.disableUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/enable", s.enableUser).Methods(http.MethodPost)
	admin.HandleFunc("/games", s.listGames).Methods(http.MethodGet)
	admin.HandleFunc("/games/{id}", s.deleteGame).Methods(http.MethodDelete)

	return r
}
