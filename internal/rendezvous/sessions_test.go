package rendezvous

import (
	"context"
	"testing"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

func authenticatedRec(principalID uint32) *prudp.ConnectionRecord {
	return &prudp.ConnectionRecord{HasPrincipal: true, PrincipalID: principalID}
}

func TestCreateSessionPersistsWithCallerAsCreator(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)

	var params []byte
	params = codec.PutUint32(params, 42)
	params = codec.PutString(params, "map=forest")

	out, err := h.CreateSession(context.Background(), authenticatedRec(7), params)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	id, _, err := codec.GetUint32(out)
	if err != nil {
		t.Fatalf("decoding session id: %v", err)
	}

	session := store.sessions[id]
	if session == nil {
		t.Fatal("expected session to be persisted")
	}
	if session.CreatorID != 7 || !session.HasParticipant(7) {
		t.Fatalf("expected creator 7 to be the creator and an initial participant, got %+v", session)
	}
}

func TestUpdateSessionRejectsNonCreator(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)
	session, _ := store.CreateSession(context.Background(), 1, 7, "old")

	var params []byte
	params = codec.PutUint32(params, session.ID)
	params = codec.PutString(params, "new")

	_, err := h.UpdateSession(context.Background(), authenticatedRec(99), params)
	if err != rmc.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestDeleteSessionByCreatorSucceeds(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)
	session, _ := store.CreateSession(context.Background(), 1, 7, "old")

	params := codec.PutUint32(nil, session.ID)
	if _, err := h.DeleteSession(context.Background(), authenticatedRec(7), params); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, ok := store.sessions[session.ID]; ok {
		t.Fatal("expected session to be removed from the live set")
	}
}

func TestAddAndRemoveParticipantsSetSemantics(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)
	session, _ := store.CreateSession(context.Background(), 1, 7, "")

	var add []byte
	add = codec.PutUint32(add, session.ID)
	add = codec.PutListLen(add, 2)
	add = codec.PutUint32(add, 10)
	add = codec.PutUint32(add, 10) // duplicate, must be a no-op

	if _, err := h.AddParticipants(context.Background(), authenticatedRec(7), add); err != nil {
		t.Fatalf("AddParticipants failed: %v", err)
	}
	if len(session.Participants) != 2 {
		t.Fatalf("expected creator + one new participant, got %v", session.Participants)
	}

	var remove []byte
	remove = codec.PutUint32(remove, session.ID)
	remove = codec.PutListLen(remove, 1)
	remove = codec.PutUint32(remove, 10)

	if _, err := h.RemoveParticipants(context.Background(), authenticatedRec(7), remove); err != nil {
		t.Fatalf("RemoveParticipants failed: %v", err)
	}
	if len(session.Participants) != 1 || session.Participants[0] != 7 {
		t.Fatalf("expected only the creator left, got %v", session.Participants)
	}
}

func TestGetParticipantsPaginates(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)
	session, _ := store.CreateSession(context.Background(), 1, 7, "")
	store.AddParticipants(context.Background(), session.ID, []uint32{10, 11, 12})

	var params []byte
	params = codec.PutUint32(params, session.ID)
	params = codec.PutUint32(params, 1)
	params = codec.PutUint32(params, 2)

	out, err := h.GetParticipants(context.Background(), authenticatedRec(7), params)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	n, rest, err := codec.GetListLen(out)
	if err != nil {
		t.Fatalf("decoding list length: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 participants in page, got %d", n)
	}
	first, rest, _ := codec.GetUint32(rest)
	second, _, _ := codec.GetUint32(rest)
	if first != 10 || second != 11 {
		t.Fatalf("expected page [10, 11], got [%d, %d]", first, second)
	}
}

func TestSearchSessionsExcludesOwnWhenRequested(t *testing.T) {
	store := newFakeStore()
	h := newTestHandlers(store)
	store.CreateSession(context.Background(), 5, 7, "mine")
	store.CreateSession(context.Background(), 5, 9, "theirs")

	var params []byte
	params = codec.PutUint32(params, 5)
	params = codec.PutBool(params, true)

	out, err := h.SearchSessions(context.Background(), authenticatedRec(7), params)
	if err != nil {
		t.Fatalf("SearchSessions failed: %v", err)
	}
	n, _, err := codec.GetListLen(out)
	if err != nil {
		t.Fatalf("decoding list length: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 session after excluding the caller's own, got %d", n)
	}
}
