package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rdv2go/rdv2go/internal/model"
)

// CreateSession inserts a new game session with its creator as the
// first participant (spec §3 invariant: "the creator is present from
// creation until explicit removal").
func (d *DB) CreateSession(ctx context.Context, typeID uint32, creatorID uint32, attributes string) (*model.GameSession, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uint32
	err = tx.QueryRow(ctx,
		`INSERT INTO game_sessions (type_id, creator_id, attributes) VALUES ($1, $2, $3) RETURNING id`,
		typeID, creatorID, attributes,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO participants (game_id, user_id) VALUES ($1, $2)`, id, creatorID,
	); err != nil {
		return nil, fmt.Errorf("adding creator to session %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &model.GameSession{
		ID:           id,
		TypeID:       typeID,
		CreatorID:    creatorID,
		Attributes:   attributes,
		Participants: []uint32{creatorID},
	}, nil
}

// UpdateSession updates the opaque attributes of a live session.
func (d *DB) UpdateSession(ctx context.Context, id uint32, attributes string) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE game_sessions SET attributes = $1 WHERE id = $2 AND destroyed_at IS NULL`,
		attributes, id,
	)
	if err != nil {
		return fmt.Errorf("updating session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating session %d: %w", id, errSessionNotFound)
	}
	return nil
}

// DeleteSession soft-deletes a session by stamping destroyed_at, per the
// partial index over live sessions (spec §6 "destroyed sessions excluded
// from search").
func (d *DB) DeleteSession(ctx context.Context, id uint32) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE game_sessions SET destroyed_at = now() WHERE id = $1 AND destroyed_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting session %d: %w", id, errSessionNotFound)
	}
	return nil
}

// DestroySessionsByCreator soft-deletes every live session created by a
// principal (spec §4.3 "destroyed-on-disconnect game sessions"; S6 "its
// session row is marked destroyed_at").
func (d *DB) DestroySessionsByCreator(ctx context.Context, creatorID uint32) error {
	if _, err := d.pool.Exec(ctx,
		`UPDATE game_sessions SET destroyed_at = now() WHERE creator_id = $1 AND destroyed_at IS NULL`, creatorID,
	); err != nil {
		return fmt.Errorf("destroying sessions created by %d: %w", creatorID, err)
	}
	return nil
}

// AddParticipants adds principals to a session, ignoring ones already
// present (spec §6 "participants unique per (game_id, user_id)").
func (d *DB) AddParticipants(ctx context.Context, gameID uint32, principalIDs []uint32) error {
	for _, pid := range principalIDs {
		if _, err := d.pool.Exec(ctx,
			`INSERT INTO participants (game_id, user_id) VALUES ($1, $2)
			 ON CONFLICT (game_id, user_id) DO NOTHING`, gameID, pid,
		); err != nil {
			return fmt.Errorf("adding participant %d to session %d: %w", pid, gameID, err)
		}
	}
	return nil
}

// RemoveParticipants removes principals from a session.
func (d *DB) RemoveParticipants(ctx context.Context, gameID uint32, principalIDs []uint32) error {
	for _, pid := range principalIDs {
		if _, err := d.pool.Exec(ctx,
			`DELETE FROM participants WHERE game_id = $1 AND user_id = $2`, gameID, pid,
		); err != nil {
			return fmt.Errorf("removing participant %d from session %d: %w", pid, gameID, err)
		}
	}
	return nil
}

// GetParticipants returns the principal ids currently in a session.
func (d *DB) GetParticipants(ctx context.Context, gameID uint32) ([]uint32, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT user_id FROM participants WHERE game_id = $1 ORDER BY user_id`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing participants of session %d: %w", gameID, err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var uid uint32
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning participant row: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// SearchSessions returns every live session of the given type (spec §4.5
// search by session type; destroyed sessions are excluded by the
// query's destroyed_at IS NULL filter).
func (d *DB) SearchSessions(ctx context.Context, typeID uint32) ([]model.GameSession, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, type_id, creator_id, attributes FROM game_sessions
		 WHERE type_id = $1 AND destroyed_at IS NULL ORDER BY id`, typeID,
	)
	if err != nil {
		return nil, fmt.Errorf("searching sessions of type %d: %w", typeID, err)
	}
	defer rows.Close()

	var sessions []model.GameSession
	for rows.Next() {
		var s model.GameSession
		if err := rows.Scan(&s.ID, &s.TypeID, &s.CreatorID, &s.Attributes); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// SearchSessionsWithParticipants is SearchSessions with each result's
// Participants populated, for callers that need the full roster in one
// round trip (spec §4.5 "search ... with participants").
func (d *DB) SearchSessionsWithParticipants(ctx context.Context, typeID uint32) ([]model.GameSession, error) {
	sessions, err := d.SearchSessions(ctx, typeID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		participants, err := d.GetParticipants(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Participants = participants
	}
	return sessions, nil
}

// GetSession fetches a single live session by id, including its
// participants.
func (d *DB) GetSession(ctx context.Context, id uint32) (*model.GameSession, error) {
	var s model.GameSession
	err := d.pool.QueryRow(ctx,
		`SELECT id, type_id, creator_id, attributes FROM game_sessions
		 WHERE id = $1 AND destroyed_at IS NULL`, id,
	).Scan(&s.ID, &s.TypeID, &s.CreatorID, &s.Attributes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching session %d: %w", id, err)
	}
	participants, err := d.GetParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Participants = participants
	return &s, nil
}

// ListGames returns every live session regardless of type, for the
// admin plane's game listing (spec §6 "list ... games").
func (d *DB) ListGames(ctx context.Context) ([]model.GameSession, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, type_id, creator_id, attributes FROM game_sessions
		 WHERE destroyed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var sessions []model.GameSession
	for rows.Next() {
		var s model.GameSession
		if err := rows.Scan(&s.ID, &s.TypeID, &s.CreatorID, &s.Attributes); err != nil {
			return nil, fmt.Errorf("scanning game row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	return sessions, nil
}

var errSessionNotFound = errors.New("session not found or already destroyed")
