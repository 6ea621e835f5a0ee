package rendezvous

import (
	"log/slog"

	"github.com/rdv2go/rdv2go/internal/ticket"
)

// Handlers groups the RMC handler methods over a Store and a ticket
// Engine (spec §4.5, §4.6). RegisterOn wires every method onto an
// rmc.Registry.
type Handlers struct {
	Store   Store
	Tickets *ticket.Engine

	// PasswordIterations is the PBKDF iteration count used to derive a
	// principal's long-term key from its plaintext password at login
	// time (spec §4.6 "Per-user key derivation").
	PasswordIterations int

	// SecureStationURL is the StationURL of the RVSec endpoint handed
	// back to clients on a successful login (spec §4.5 Login: "along
	// with the station URL of the secure endpoint").
	SecureStationURL string

	Logger *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
