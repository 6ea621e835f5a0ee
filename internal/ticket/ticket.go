// Package ticket implements the authentication ticket engine (spec §4.6,
// "Ticket Engine (L6)"): issuing and opening sealed tickets. Deriving the
// password-derived long-term key is done by package crypto.
package ticket

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/rdv2go/rdv2go/internal/codec"
)

// macSize is the length in bytes of the HMAC-SHA256 tag appended to a
// sealed ticket (spec §4.6 "Ticket sealing": "wrapped with a keyed MAC
// under the ticket_key").
const macSize = sha256.Size

// payloadSize is the fixed wire size of an unsealed ticket payload:
// principal_id (4) + session_key (16) + valid_until (8).
const payloadSize = 4 + 16 + 8

// SealedSize is the fixed wire size of a sealed ticket (payload + MAC
// tag). CONNECT packets carry a sealed ticket immediately followed by
// the encrypted request, so the reliability engine needs a fixed-width
// prefix to split the two apart (spec §4.3 "On CONNECT").
const SealedSize = payloadSize + macSize

// ErrInvalidTicket is returned when a sealed ticket fails MAC
// verification, is truncated, or has expired (spec §7: "Ticket
// validation failures surface as Authentication.ValidationFailed").
var ErrInvalidTicket = errors.New("ticket: invalid ticket")

// Ticket is the (principal_id, session_key, valid_until) triple sealed
// into a bearer credential (spec §3 "Ticket").
type Ticket struct {
	PrincipalID uint32
	SessionKey  [16]byte
	ValidUntil  time.Time
}

// Engine issues and opens tickets under a single long-term ticket key
// (spec §4.6 "Long-term keys": "a per-deployment ticket_key").
type Engine struct {
	ticketKey []byte
}

// NewEngine creates a ticket Engine bound to a per-deployment ticket key.
func NewEngine(ticketKey []byte) *Engine {
	key := make([]byte, len(ticketKey))
	copy(key, ticketKey)
	return &Engine{ticketKey: key}
}

// encode serializes the ticket payload via the L1 codec (spec §4.6
// "Ticket sealing": "serialized via the L1 codec").
func (t Ticket) encode() []byte {
	var buf []byte
	buf = codec.PutUint32(buf, t.PrincipalID)
	buf = append(buf, t.SessionKey[:]...)
	buf = codec.PutUint64(buf, uint64(t.ValidUntil.Unix()))
	return buf
}

func decodeTicket(rest []byte) (Ticket, error) {
	pid, rest, err := codec.GetUint32(rest)
	if err != nil {
		return Ticket{}, fmt.Errorf("decoding principal id: %w", err)
	}
	if len(rest) < 16 {
		return Ticket{}, fmt.Errorf("%w: truncated session key", ErrInvalidTicket)
	}
	var sk [16]byte
	copy(sk[:], rest[:16])
	rest = rest[16:]
	validUntil, _, err := codec.GetUint64(rest)
	if err != nil {
		return Ticket{}, fmt.Errorf("decoding valid_until: %w", err)
	}
	return Ticket{
		PrincipalID: pid,
		SessionKey:  sk,
		ValidUntil:  time.Unix(int64(validUntil), 0),
	}, nil
}

// Seal serializes and MACs a ticket under the engine's ticket key. Opening
// the result with the same key yields back the identical triple (spec §3
// Ticket invariant; spec P1/P7).
func (e *Engine) Seal(t Ticket) []byte {
	payload := t.encode()
	mac := hmac.New(sha256.New, e.ticketKey)
	mac.Write(payload)
	tag := mac.Sum(nil)
	return append(payload, tag...)
}

// Open verifies the MAC and freshness of a sealed ticket and returns the
// decoded triple. now is passed explicitly so freshness checks are
// deterministic and testable (spec P7: "a ticket opened after its
// valid_until is rejected").
func (e *Engine) Open(sealed []byte, now time.Time) (Ticket, error) {
	if len(sealed) < macSize {
		return Ticket{}, fmt.Errorf("%w: sealed ticket too short", ErrInvalidTicket)
	}
	split := len(sealed) - macSize
	payload, tag := sealed[:split], sealed[split:]

	mac := hmac.New(sha256.New, e.ticketKey)
	mac.Write(payload)
	want := mac.Sum(nil)
	if !hmac.Equal(tag, want) {
		return Ticket{}, fmt.Errorf("%w: mac mismatch", ErrInvalidTicket)
	}

	t, err := decodeTicket(payload)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if !now.Before(t.ValidUntil) {
		return Ticket{}, fmt.Errorf("%w: expired at %s", ErrInvalidTicket, t.ValidUntil)
	}
	return t, nil
}
