package rendezvous

import (
	"context"
	"log/slog"
	"time"

	"github.com/rdv2go/rdv2go/internal/prudp"
)

// TeardownStore is the persistence surface SessionTeardown depends on to
// keep §6's user_sessions/station_urls/game_sessions rows in sync with
// the in-memory PRUDP connection table.
type TeardownStore interface {
	SetOnline(ctx context.Context, id uint32, online bool) error
	CreateUserSession(ctx context.Context, userID uint32) error
	ClearUserSessions(ctx context.Context, userID uint32) error
	ClearStationURLs(ctx context.Context, principalID uint32) error
	DestroySessionsByCreator(ctx context.Context, creatorID uint32) error
}

// SessionTeardown implements prudp.ConnectObserver and
// prudp.DisconnectObserver, wired alongside internal/registry on the
// prudp.Engine (spec §4.3 "the eviction observer receives the
// ConnectionRecord so it can clean up derived state such as station
// URLs and destroyed-on-disconnect game sessions"). Every call runs its
// database work on its own goroutine so a slow query never stalls the
// single-threaded PRUDP receive loop.
type SessionTeardown struct {
	Store  TeardownStore
	Logger *slog.Logger
}

func (s *SessionTeardown) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// OnConnect marks the principal online and opens a user_sessions row.
func (s *SessionTeardown) OnConnect(rec *prudp.ConnectionRecord) {
	principalID := rec.PrincipalID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.SetOnline(ctx, principalID, true); err != nil {
			s.logger().Warn("marking principal online", "principal_id", principalID, "error", err)
		}
		if err := s.Store.CreateUserSession(ctx, principalID); err != nil {
			s.logger().Warn("recording user session", "principal_id", principalID, "error", err)
		}
	}()
}

// OnDisconnect clears the principal's station URLs, destroys the game
// sessions it created, closes its user_sessions rows, and marks it
// offline — on explicit DISCONNECT, idle eviction, or duplicate-login
// takeover alike (spec §3 "evicted on DISCONNECT, on idle ..., or on
// duplicate-login takeover").
func (s *SessionTeardown) OnDisconnect(rec *prudp.ConnectionRecord) {
	if !rec.HasPrincipal {
		return
	}
	principalID := rec.PrincipalID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.ClearStationURLs(ctx, principalID); err != nil {
			s.logger().Warn("clearing station urls on disconnect", "principal_id", principalID, "error", err)
		}
		if err := s.Store.DestroySessionsByCreator(ctx, principalID); err != nil {
			s.logger().Warn("destroying creator sessions on disconnect", "principal_id", principalID, "error", err)
		}
		if err := s.Store.ClearUserSessions(ctx, principalID); err != nil {
			s.logger().Warn("clearing user sessions on disconnect", "principal_id", principalID, "error", err)
		}
		if err := s.Store.SetOnline(ctx, principalID, false); err != nil {
			s.logger().Warn("marking principal offline", "principal_id", principalID, "error", err)
		}
	}()
}
