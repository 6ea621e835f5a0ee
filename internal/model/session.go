package model

import "time"

// GameSession is a rendezvous game session (spec §3 "GameSession").
// Attributes is opaque to the core and bounded to ~64 KiB by the caller.
type GameSession struct {
	ID          uint32
	TypeID      uint32
	CreatorID   uint32
	Attributes  string
	DestroyedAt *time.Time

	// Participants is the set of principal ids currently in the session.
	// The creator is present from creation until explicit removal
	// (invariant, spec §3).
	Participants []uint32
}

// IsDestroyed reports whether the session has been deleted.
func (s GameSession) IsDestroyed() bool {
	return s.DestroyedAt != nil
}

// HasParticipant reports whether principalID is currently a participant.
func (s GameSession) HasParticipant(principalID uint32) bool {
	for _, p := range s.Participants {
		if p == principalID {
			return true
		}
	}
	return false
}

// StationURL is a peer-reachability descriptor registered by a principal
// (spec §3 "StationURL").
type StationURL struct {
	PrincipalID uint32
	URL         string
}

// Invite is a queued session invitation (spec §3 "Invite").
type Invite struct {
	ID         uint64
	Sender     uint32
	Receiver   uint32
	QueuedAt   time.Time
}
