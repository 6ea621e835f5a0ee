package rendezvous

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rdv2go/rdv2go/internal/prudp"
)

type fakeTeardownStore struct {
	mu           sync.Mutex
	online       map[uint32]bool
	userSessions map[uint32]int
	stationURLs  map[uint32]bool
	destroyed    map[uint32]bool
	done         chan struct{}
}

func newFakeTeardownStore() *fakeTeardownStore {
	return &fakeTeardownStore{
		online:       make(map[uint32]bool),
		userSessions: make(map[uint32]int),
		stationURLs:  make(map[uint32]bool),
		destroyed:    make(map[uint32]bool),
		done:         make(chan struct{}, 16),
	}
}

func (f *fakeTeardownStore) SetOnline(ctx context.Context, id uint32, online bool) error {
	f.mu.Lock()
	f.online[id] = online
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeTeardownStore) CreateUserSession(ctx context.Context, userID uint32) error {
	f.mu.Lock()
	f.userSessions[userID]++
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeTeardownStore) ClearUserSessions(ctx context.Context, userID uint32) error {
	f.mu.Lock()
	f.userSessions[userID] = 0
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeTeardownStore) ClearStationURLs(ctx context.Context, principalID uint32) error {
	f.mu.Lock()
	f.stationURLs[principalID] = false
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeTeardownStore) DestroySessionsByCreator(ctx context.Context, creatorID uint32) error {
	f.mu.Lock()
	f.destroyed[creatorID] = true
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

// waitCalls blocks until n asynchronous store calls have landed, or fails
// the test after a generous timeout.
func (f *fakeTeardownStore) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for store call %d/%d", i+1, n)
		}
	}
}

func TestSessionTeardownOnConnectMarksOnline(t *testing.T) {
	store := newFakeTeardownStore()
	store.stationURLs[7] = true
	td := &SessionTeardown{Store: store}

	td.OnConnect(&prudp.ConnectionRecord{PrincipalID: 7, HasPrincipal: true})
	store.waitCalls(t, 2)

	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.online[7] {
		t.Fatalf("expected principal 7 to be marked online")
	}
	if store.userSessions[7] != 1 {
		t.Fatalf("expected one user_sessions row, got %d", store.userSessions[7])
	}
}

func TestSessionTeardownOnDisconnectClearsDerivedState(t *testing.T) {
	store := newFakeTeardownStore()
	store.online[7] = true
	store.userSessions[7] = 1
	store.stationURLs[7] = true
	td := &SessionTeardown{Store: store}

	td.OnDisconnect(&prudp.ConnectionRecord{PrincipalID: 7, HasPrincipal: true})
	store.waitCalls(t, 4)

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.online[7] {
		t.Fatalf("expected principal 7 to be marked offline")
	}
	if store.userSessions[7] != 0 {
		t.Fatalf("expected user_sessions rows cleared, got %d", store.userSessions[7])
	}
	if store.stationURLs[7] {
		t.Fatalf("expected station urls cleared")
	}
	if !store.destroyed[7] {
		t.Fatalf("expected principal 7's created sessions to be destroyed")
	}
}

func TestSessionTeardownOnDisconnectIgnoresUnauthenticated(t *testing.T) {
	store := newFakeTeardownStore()
	td := &SessionTeardown{Store: store}

	td.OnDisconnect(&prudp.ConnectionRecord{HasPrincipal: false})

	select {
	case <-store.done:
		t.Fatalf("expected no store calls for a connection that never authenticated")
	case <-time.After(100 * time.Millisecond):
	}
}
