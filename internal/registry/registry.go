// Package registry tracks which principals are currently connected and
// where, so L7/L8 components can address a callback at a live endpoint
// without walking the connection table directly (spec §4.3, §6 "Client
// registry"). It implements prudp.ConnectObserver and
// prudp.DisconnectObserver and is wired onto the prudp.Engine at
// startup.
package registry

import (
	"sync"

	"github.com/rdv2go/rdv2go/internal/prudp"
)

// Entry is the live-connection snapshot kept per principal.
type Entry struct {
	PrincipalID  uint32
	ConnectionID uint32
	Endpoint     prudp.Endpoint
}

// Registry maps connection_id and principal_id to the live Entry for a
// connected client. Safe for concurrent use from the receive loop and
// from admin-plane lookups.
type Registry struct {
	mu             sync.RWMutex
	byConnectionID map[uint32]*Entry
	byPrincipalID  map[uint32]*Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byConnectionID: make(map[uint32]*Entry),
		byPrincipalID:  make(map[uint32]*Entry),
	}
}

// OnConnect registers rec's principal as online. Called by prudp.Engine
// right after a CONNECT succeeds and the principal is bound.
func (r *Registry) OnConnect(rec *prudp.ConnectionRecord) {
	entry := &Entry{
		PrincipalID:  rec.PrincipalID,
		ConnectionID: rec.ConnectionID,
		Endpoint:     rec.ClientEndpoint,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConnectionID[rec.ConnectionID] = entry
	r.byPrincipalID[rec.PrincipalID] = entry
}

// OnDisconnect removes rec's entry, whether the teardown came from an
// explicit DISCONNECT, idle eviction, or a duplicate-login takeover.
func (r *Registry) OnDisconnect(rec *prudp.ConnectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byConnectionID, rec.ConnectionID)

	// Only drop the principal index if it still points at this
	// connection — a takeover already installed the new entry for the
	// same principal before evicting the old record.
	if existing, ok := r.byPrincipalID[rec.PrincipalID]; ok && existing.ConnectionID == rec.ConnectionID {
		delete(r.byPrincipalID, rec.PrincipalID)
	}
}

// ByPrincipal returns the live entry for principalID, if connected.
func (r *Registry) ByPrincipal(principalID uint32) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPrincipalID[principalID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ByConnectionID returns the live entry for connectionID, if connected.
func (r *Registry) ByConnectionID(connectionID uint32) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConnectionID[connectionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Online reports whether principalID currently has a live connection.
func (r *Registry) Online(principalID uint32) bool {
	_, ok := r.ByPrincipal(principalID)
	return ok
}

// Count returns the number of currently connected principals.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPrincipalID)
}

// ForEach iterates over every connected entry. fn receiving false stops
// iteration early.
func (r *Registry) ForEach(fn func(Entry) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byPrincipalID {
		if !fn(*e) {
			return
		}
	}
}
