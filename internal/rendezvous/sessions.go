package rendezvous

import (
	"context"
	"fmt"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/model"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

// CreateSession persists a GameSession with the caller as creator (spec
// §4.5). Parameters: (type_id u32, attributes String). Return values:
// (session_id u32).
func (h *Handlers) CreateSession(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	typeID, rest, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding session type_id: %w", err)
	}
	attributes, _, err := codec.GetString(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding session attributes: %w", err)
	}

	session, err := h.Store.CreateSession(ctx, typeID, rec.PrincipalID, attributes)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return codec.PutUint32(nil, session.ID), nil
}

// UpdateSession replaces a session's attributes blob; only its creator
// may do so (spec §4.5). Parameters: (session_id u32, attributes String).
func (h *Handlers) UpdateSession(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	sessionID, rest, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding session id: %w", err)
	}
	attributes, _, err := codec.GetString(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding session attributes: %w", err)
	}

	session, err := h.requireCreator(ctx, sessionID, rec.PrincipalID)
	if err != nil {
		return nil, err
	}
	if err := h.Store.UpdateSession(ctx, session.ID, attributes); err != nil {
		return nil, fmt.Errorf("updating session %d: %w", sessionID, err)
	}
	return nil, nil
}

// DeleteSession marks a session destroyed; only its creator may delete
// it (spec §4.5). Parameters: (session_id u32).
func (h *Handlers) DeleteSession(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	sessionID, _, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding session id: %w", err)
	}

	session, err := h.requireCreator(ctx, sessionID, rec.PrincipalID)
	if err != nil {
		return nil, err
	}
	if err := h.Store.DeleteSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("deleting session %d: %w", sessionID, err)
	}
	return nil, nil
}

// AddParticipants adds principals to a session with set-union semantics;
// duplicate inserts are no-ops (spec §4.5). Parameters:
// (session_id u32, principal_ids List<u32>).
func (h *Handlers) AddParticipants(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	sessionID, ids, err := decodeSessionAndIDs(params)
	if err != nil {
		return nil, err
	}
	if _, err := h.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := h.Store.AddParticipants(ctx, sessionID, ids); err != nil {
		return nil, fmt.Errorf("adding participants to session %d: %w", sessionID, err)
	}
	return nil, nil
}

// RemoveParticipants removes principals from a session with set-
// difference semantics (spec §4.5). Parameters:
// (session_id u32, principal_ids List<u32>).
func (h *Handlers) RemoveParticipants(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	sessionID, ids, err := decodeSessionAndIDs(params)
	if err != nil {
		return nil, err
	}
	if _, err := h.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := h.Store.RemoveParticipants(ctx, sessionID, ids); err != nil {
		return nil, fmt.Errorf("removing participants from session %d: %w", sessionID, err)
	}
	return nil, nil
}

// GetParticipants paginates a session's participant list (spec §4.5).
// Parameters: (session_id u32, offset u32, limit u32).
func (h *Handlers) GetParticipants(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	sessionID, rest, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding session id: %w", err)
	}
	offset, rest, err := codec.GetUint32(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding offset: %w", err)
	}
	limit, _, err := codec.GetUint32(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding limit: %w", err)
	}

	all, err := h.Store.GetParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing participants of session %d: %w", sessionID, err)
	}
	page := paginate(all, offset, limit)

	out := codec.PutListLen(nil, len(page))
	for _, id := range page {
		out = codec.PutUint32(out, id)
	}
	return out, nil
}

// SearchSessions returns every non-destroyed session of a given type,
// optionally excluding the caller's own sessions (spec §4.5). Each
// returned session carries its participant list and each participant's
// registered station URLs. Parameters: (type_id u32, exclude_own bool).
func (h *Handlers) SearchSessions(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	typeID, rest, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding type_id: %w", err)
	}
	excludeOwn, _, err := codec.GetBool(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding exclude_own: %w", err)
	}

	sessions, err := h.Store.SearchSessionsWithParticipants(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("searching sessions of type %d: %w", typeID, err)
	}
	if excludeOwn && rec.HasPrincipal {
		sessions = filterSessions(sessions, func(s model.GameSession) bool {
			return s.CreatorID != rec.PrincipalID
		})
	}
	return h.encodeSessions(ctx, sessions)
}

// SearchSessionsWithParticipants filters to sessions containing at
// least one of a supplied set of principal ids (spec §4.5). Parameters:
// (type_id u32, principal_ids List<u32>).
func (h *Handlers) SearchSessionsWithParticipants(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	typeID, rest, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding type_id: %w", err)
	}
	n, rest, err := codec.GetListLen(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding principal id list length: %w", err)
	}
	want := make(map[uint32]bool, n)
	for i := 0; i < n; i++ {
		var id uint32
		id, rest, err = codec.GetUint32(rest)
		if err != nil {
			return nil, fmt.Errorf("decoding principal id: %w", err)
		}
		want[id] = true
	}

	sessions, err := h.Store.SearchSessionsWithParticipants(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("searching sessions of type %d: %w", typeID, err)
	}
	sessions = filterSessions(sessions, func(s model.GameSession) bool {
		for _, p := range s.Participants {
			if want[p] {
				return true
			}
		}
		return false
	})
	return h.encodeSessions(ctx, sessions)
}

func (h *Handlers) encodeSessions(ctx context.Context, sessions []model.GameSession) ([]byte, error) {
	out := codec.PutListLen(nil, len(sessions))
	for _, s := range sessions {
		out = codec.PutUint32(out, s.ID)
		out = codec.PutUint32(out, s.TypeID)
		out = codec.PutUint32(out, s.CreatorID)
		out = codec.PutString(out, s.Attributes)

		out = codec.PutListLen(out, len(s.Participants))
		for _, pid := range s.Participants {
			out = codec.PutUint32(out, pid)
			urls, err := h.Store.GetStationURLs(ctx, pid)
			if err != nil {
				return nil, fmt.Errorf("fetching station urls for %d: %w", pid, err)
			}
			out = codec.PutListLen(out, len(urls))
			for _, u := range urls {
				out = codec.PutStationURL(out, u)
			}
		}
	}
	return out, nil
}

func (h *Handlers) getSession(ctx context.Context, sessionID uint32) (*model.GameSession, error) {
	session, err := h.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetching session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, rmc.InvalidGID
	}
	return session, nil
}

func (h *Handlers) requireCreator(ctx context.Context, sessionID, principalID uint32) (*model.GameSession, error) {
	session, err := h.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CreatorID != principalID {
		return nil, rmc.AccessDenied
	}
	return session, nil
}

func decodeSessionAndIDs(params []byte) (uint32, []uint32, error) {
	sessionID, rest, err := codec.GetUint32(params)
	if err != nil {
		return 0, nil, fmt.Errorf("decoding session id: %w", err)
	}
	n, rest, err := codec.GetListLen(rest)
	if err != nil {
		return 0, nil, fmt.Errorf("decoding participant id list length: %w", err)
	}
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		var id uint32
		id, rest, err = codec.GetUint32(rest)
		if err != nil {
			return 0, nil, fmt.Errorf("decoding participant id: %w", err)
		}
		ids = append(ids, id)
	}
	return sessionID, ids, nil
}

func paginate(all []uint32, offset, limit uint32) []uint32 {
	if offset >= uint32(len(all)) {
		return nil
	}
	end := offset + limit
	if end > uint32(len(all)) || limit == 0 {
		end = uint32(len(all))
	}
	return all[offset:end]
}

func filterSessions(sessions []model.GameSession, keep func(model.GameSession) bool) []model.GameSession {
	out := make([]model.GameSession, 0, len(sessions))
	for _, s := range sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
