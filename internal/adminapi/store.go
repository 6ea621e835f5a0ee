// Package adminapi implements the out-of-band admin RPC plane: a
// request-response HTTP transport distinct from PRUDP, exposing
// list/delete for users and games and a login/register surface for the
// launcher (spec §6 "Out-of-band admin RPC plane"). Authorization uses
// a single bearer token printed at server start.
package adminapi

import (
	"context"

	"github.com/rdv2go/rdv2go/internal/model"
)

// Store is the persistence surface the admin plane needs. Satisfied by
// *db.DB; kept as a narrow interface here so handlers are testable
// without a real Postgres connection.
type Store interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	CreateAccount(ctx context.Context, acc model.Account) (uint32, error)
	DeleteAccount(ctx context.Context, id uint32) error
	SetDisabled(ctx context.Context, id uint32, disabled bool) error

	ListGames(ctx context.Context) ([]model.GameSession, error)
	DeleteSession(ctx context.Context, id uint32) error
}
