// Package rendezvous implements the service core (spec §4.5, "Rendezvous
// Handlers (L7)"): login/ticket issuance, game session lifecycle,
// participant management, station URL registration, invites, and the
// stub surface for friends/accounts/news/stats.
package rendezvous

import (
	"context"
	"time"

	"github.com/rdv2go/rdv2go/internal/model"
)

// Store is the persistence surface the rendezvous handlers depend on.
// It is satisfied by *db.DB; defining it here (rather than depending on
// package db directly) keeps the handlers testable against an in-memory
// fake, the way internal/login's handler in the teacher depends on an
// interface rather than *db.DB directly.
type Store interface {
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	UpdateLastLogin(ctx context.Context, id uint32, now time.Time) error

	CreateSession(ctx context.Context, typeID uint32, creatorID uint32, attributes string) (*model.GameSession, error)
	UpdateSession(ctx context.Context, id uint32, attributes string) error
	DeleteSession(ctx context.Context, id uint32) error
	GetSession(ctx context.Context, id uint32) (*model.GameSession, error)
	AddParticipants(ctx context.Context, gameID uint32, principalIDs []uint32) error
	RemoveParticipants(ctx context.Context, gameID uint32, principalIDs []uint32) error
	GetParticipants(ctx context.Context, gameID uint32) ([]uint32, error)
	SearchSessions(ctx context.Context, typeID uint32) ([]model.GameSession, error)
	SearchSessionsWithParticipants(ctx context.Context, typeID uint32) ([]model.GameSession, error)

	RegisterUrls(ctx context.Context, principalID uint32, urls []string) error
	GetStationURLs(ctx context.Context, principalID uint32) ([]string, error)

	SendInvitation(ctx context.Context, sender, receiver uint32) (*model.Invite, error)
	GetInvitationsReceived(ctx context.Context, receiver uint32) ([]model.Invite, error)
}
