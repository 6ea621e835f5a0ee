package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rdv2go/rdv2go/internal/model"
)

// GetAccountByUsername looks up an account by username. It returns
// nil, nil when no such account exists (spec §3 "Principal / Account").
func (d *DB) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var (
		id             uint32
		passwordHash   sql.NullString
		legacyPassword sql.NullString
		linkedAccount  uuid.NullUUID
		isOnline       bool
		lastLogin      sql.NullTime
		disabled       bool
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, password_hash, password, ubi_id, is_online, last_login, disabled
		   FROM users WHERE username = $1`, username,
	).Scan(&id, &passwordHash, &legacyPassword, &linkedAccount, &isOnline, &lastLogin, &disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account %q: %w", username, err)
	}

	acc := &model.Account{
		ID:             id,
		Username:       username,
		PasswordHash:   passwordHash.String,
		LegacyPassword: legacyPassword.String,
		IsOnline:       isOnline,
		Disabled:       disabled,
	}
	if linkedAccount.Valid {
		acc.LinkedAccountID = linkedAccount.UUID
	}
	if lastLogin.Valid {
		acc.LastLogin = lastLogin.Time
	}
	return acc, nil
}

// CreateAccount inserts a new account. Exactly one of acc.PasswordHash
// or acc.LegacyPassword must be set (spec §6 "exactly one of
// users.password / users.password_hash is non-null").
func (d *DB) CreateAccount(ctx context.Context, acc model.Account) (uint32, error) {
	if acc.PasswordHash == "" && acc.LegacyPassword == "" {
		return 0, fmt.Errorf("creating account %q: neither password_hash nor legacy password set", acc.Username)
	}
	if acc.PasswordHash != "" && acc.LegacyPassword != "" {
		return 0, fmt.Errorf("creating account %q: both password_hash and legacy password set", acc.Username)
	}

	var passwordHash, legacyPassword *string
	if acc.PasswordHash != "" {
		passwordHash = &acc.PasswordHash
	}
	if acc.LegacyPassword != "" {
		legacyPassword = &acc.LegacyPassword
	}

	var id uint32
	err := d.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, password)
		 VALUES ($1, $2, $3) RETURNING id`,
		acc.Username, passwordHash, legacyPassword,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating account %q: %w", acc.Username, err)
	}
	return id, nil
}

// DeleteAccount removes an account by id (spec §3 "deleted via admin RPC").
func (d *DB) DeleteAccount(ctx context.Context, id uint32) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}
	return nil
}

// SetDisabled toggles an account's disabled flag (spec §7
// "RendezVous.AccountDisabled").
func (d *DB) SetDisabled(ctx context.Context, id uint32, disabled bool) error {
	if _, err := d.pool.Exec(ctx, `UPDATE users SET disabled = $1 WHERE id = $2`, disabled, id); err != nil {
		return fmt.Errorf("setting disabled=%v on account %d: %w", disabled, id, err)
	}
	return nil
}

// SetOnline sets an account's is_online flag directly. Unlike
// UpdateLastLogin, this path is not affected by the preserved
// AND-vs-comma bug below.
func (d *DB) SetOnline(ctx context.Context, id uint32, online bool) error {
	if _, err := d.pool.Exec(ctx, `UPDATE users SET is_online = $1 WHERE id = $2`, online, id); err != nil {
		return fmt.Errorf("setting is_online=%v on account %d: %w", online, id, err)
	}
	return nil
}

// CreateUserSession opens a user_sessions row for a principal's live
// PRUDP connection (spec §6 "user_sessions(id PK, user_id FK users.id)").
func (d *DB) CreateUserSession(ctx context.Context, userID uint32) error {
	if _, err := d.pool.Exec(ctx, `INSERT INTO user_sessions (user_id) VALUES ($1)`, userID); err != nil {
		return fmt.Errorf("creating user session for %d: %w", userID, err)
	}
	return nil
}

// ClearUserSessions removes every user_sessions row for a principal,
// called when its PRUDP connection tears down.
func (d *DB) ClearUserSessions(ctx context.Context, userID uint32) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing user sessions for %d: %w", userID, err)
	}
	return nil
}

// UpdateLastLogin records a successful login. The UPDATE joins its
// assignments with SQL AND rather than a comma, so last_login receives
// the boolean result of the AND expression and is_online is never set
// by this statement. This reproduces the original implementation's
// observable behavior and is left uncorrected by design (see
// DESIGN.md's Open Question decisions).
func (d *DB) UpdateLastLogin(ctx context.Context, id uint32, now time.Time) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE users SET last_login = $1 AND is_online = $2 WHERE id = $3`,
		now, true, id,
	)
	if err != nil {
		return fmt.Errorf("updating last login for account %d: %w", id, err)
	}
	return nil
}

// ListAccounts returns every account (spec §6 "list ... users", admin
// plane).
func (d *DB) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, username, password_hash, password, ubi_id, is_online, last_login, disabled FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			acc            model.Account
			passwordHash   sql.NullString
			legacyPassword sql.NullString
			linkedAccount  uuid.NullUUID
			lastLogin      sql.NullTime
		)
		if err := rows.Scan(&acc.ID, &acc.Username, &passwordHash, &legacyPassword, &linkedAccount, &acc.IsOnline, &lastLogin, &acc.Disabled); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		acc.PasswordHash = passwordHash.String
		acc.LegacyPassword = legacyPassword.String
		if linkedAccount.Valid {
			acc.LinkedAccountID = linkedAccount.UUID
		}
		if lastLogin.Valid {
			acc.LastLogin = lastLogin.Time
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return out, nil
}
