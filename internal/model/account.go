// Package model holds the persisted entities of the rendezvous core
// (spec §3, "DATA MODEL"): accounts/principals, game sessions and their
// participants, station URLs, and invites. Transport-only state
// (ConnectionRecord) lives in internal/prudp — spec §3 notes "the PRUDP
// connection table and ticket cache are in-memory only."
package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered principal (spec §3 "Principal / Account").
// Exactly one of PasswordHash or LegacyPassword is set, never both.
type Account struct {
	ID                uint32
	Username          string
	PasswordHash      string // Argon2 over a random salt, when set
	LegacyPassword    string // plaintext legacy password, when PasswordHash is unset
	LinkedAccountID   uuid.UUID
	IsOnline          bool
	LastLogin         time.Time
	Disabled          bool
}

// HasPassword reports whether an Account carries a usable credential.
func (a Account) HasPassword() bool {
	return a.PasswordHash != "" || a.LegacyPassword != ""
}
