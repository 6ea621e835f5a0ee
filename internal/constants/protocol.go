// Package constants holds wire-level constants for the PRUDP/RMC
// rendezvous protocol: packet types, flag bits, stream types, and
// size limits fixed by the wire format (spec §6).
package constants

import "time"

// PacketType is the low 3 bits of the PRUDP type-and-flags byte.
type PacketType uint8

const (
	PacketTypeSyn        PacketType = 0
	PacketTypeConnect    PacketType = 1
	PacketTypeData       PacketType = 2
	PacketTypeDisconnect PacketType = 3
	PacketTypePing       PacketType = 4
	PacketTypeUser       PacketType = 5
	PacketTypeRoute      PacketType = 6
	PacketTypeRaw        PacketType = 7
)

// PacketFlag is one of the bits in the high 5 bits of the type-and-flags byte.
type PacketFlag uint8

const (
	FlagAck      PacketFlag = 1 << 0
	FlagReliable PacketFlag = 1 << 1
	FlagNeedAck  PacketFlag = 1 << 2
	FlagHasSize  PacketFlag = 1 << 3
)

// StreamType is the high nibble of a vport byte.
type StreamType uint8

const (
	StreamTypeDO               StreamType = 1
	StreamTypeRV               StreamType = 2
	StreamTypeRVSec            StreamType = 3
	StreamTypeSBMGMT           StreamType = 4
	StreamTypeNAT              StreamType = 5
	StreamTypeSessionDiscovery StreamType = 6
	StreamTypeNATEcho          StreamType = 7
	StreamTypeRouting          StreamType = 8
)

const (
	// MaxFragmentPayload is the largest payload (in bytes) carried by a
	// single DATA fragment (spec §4.2: "each fragment ≤ 1000 payload bytes").
	MaxFragmentPayload = 1000

	// MaxReassemblySize bounds the total size a fragment buffer may grow
	// to before reassembly is aborted for the connection (spec §5
	// "Backpressure": "a per-connection soft cap (e.g. 1 MiB)").
	MaxReassemblySize = 1 << 20

	// SessionTimeout is the idle eviction threshold (spec §3, §4.3: "≈60 s").
	SessionTimeout = 60 * time.Second

	// IdleSweepInterval is how often the connection table is swept for
	// idle connections (spec §4.3: "once per second is sufficient").
	IdleSweepInterval = 1 * time.Second

	// TicketLifetime is how long an issued ticket remains valid (spec §4.5
	// Login: "valid_until = now + 24 h").
	TicketLifetime = 24 * time.Hour

	// SessionKeySize is the length in bytes of a ticket's session key
	// (spec §3 Ticket: "session_key (16 random bytes)").
	SessionKeySize = 16

	// DefaultPasswordIterations is the default PBKDF iteration count for
	// deriving a principal's long-term key (spec §4.6: "65000 is the
	// original default").
	DefaultPasswordIterations = 65000
)

// RMC error categories (high 16 bits of the packed 32-bit wire error code,
// spec §4.4 "Error taxonomy", enumerated in full in §7).
type ErrorCategory uint16

const (
	CategoryCore           ErrorCategory = 0
	CategoryTransport      ErrorCategory = 1
	CategoryRendezVous     ErrorCategory = 3
	CategoryAuthentication ErrorCategory = 8
	CategoryDataStore      ErrorCategory = 11
)

// RMC protocol ids (spec §4.5 "Rendezvous Handlers (L7)"). Not fixed by
// the wire format itself — every deployment's autogenerated protocol
// list assigns these — so the values below are this core's own
// registry, used consistently between internal/rendezvous's handler
// registration and any client-facing documentation.
type ProtocolID uint16

const (
	ProtocolAuthentication    ProtocolID = 10
	ProtocolSecureConnection  ProtocolID = 11
	ProtocolRendezVous        ProtocolID = 12
	ProtocolFriends           ProtocolID = 13
	ProtocolNATTraversal      ProtocolID = 14
	ProtocolAccountManagement ProtocolID = 20
	ProtocolNews              ProtocolID = 40
	ProtocolStats             ProtocolID = 41
)
