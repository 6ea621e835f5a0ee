package prudp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Endpoint is a client's network address, the other half of the
// (server_signature, client_endpoint) uniqueness invariant (spec §3).
type Endpoint struct {
	IP   string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// ConnectionRecord is the per-connection state tracked by the connection
// table (spec §3 "ConnectionRecord").
type ConnectionRecord struct {
	ServerSignature uint32
	ClientSignature uint32
	ClientEndpoint  Endpoint

	ServerSessionID uint8
	ClientSessionID uint8

	ServerSequence uint16
	ClientSequence uint16

	// FragmentBuffer maps fragment_id (1..N-1) to its payload segment;
	// cleared whenever a fragment_id==0 terminator arrives (spec §3).
	FragmentBuffer map[uint8][]byte

	// PrincipalID and StreamKey are set once at CONNECT after ticket
	// validation; HasPrincipal is false until the connection has
	// authenticated.
	PrincipalID  uint32
	HasPrincipal bool
	StreamKey    []byte
	Compress     bool

	ConnectionID uint32

	LastSeen time.Time
}

// connIDCounter is the process-wide monotonic connection id allocator,
// seeded at a non-zero value with the top bit kept clear so clients that
// treat connection_id as signed never observe a negative value (spec §3).
var connIDCounter uint32 = 1000

func nextConnectionID() uint32 {
	id := atomic.AddUint32(&connIDCounter, 1)
	return id &^ (1 << 31)
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading random bytes: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func randomUint8() (uint8, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading random byte: %w", err)
	}
	return b[0], nil
}

// Table owns the connection table: a pre-promoted set keyed by
// server_signature (created at SYN) and the live set, also keyed by
// server_signature (spec §3: "(server_signature, client_endpoint)
// uniquely identifies the record" — server_signature alone is already
// unique, since it is never reused while a record is live or pending).
type Table struct {
	mu      sync.Mutex
	pending map[uint32]*ConnectionRecord
	live    map[uint32]*ConnectionRecord
}

// NewTable creates an empty connection table.
func NewTable() *Table {
	return &Table{
		pending: make(map[uint32]*ConnectionRecord),
		live:    make(map[uint32]*ConnectionRecord),
	}
}

// CreateOnSyn allocates a pre-promoted record with a random
// server_signature unique among live and pending records (spec §4.3
// "On SYN").
func (t *Table) CreateOnSyn(now time.Time) (*ConnectionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempts := 0; attempts < 32; attempts++ {
		sig, err := randomUint32()
		if err != nil {
			return nil, err
		}
		if _, exists := t.pending[sig]; exists {
			continue
		}
		if _, exists := t.live[sig]; exists {
			continue
		}
		rec := &ConnectionRecord{
			ServerSignature: sig,
			FragmentBuffer:  make(map[uint8][]byte),
			LastSeen:        now,
		}
		t.pending[sig] = rec
		return rec, nil
	}
	return nil, fmt.Errorf("prudp: could not allocate a unique server_signature")
}

// Promote moves a pending record into the live table at CONNECT. It does
// not evict other records; duplicate-login takeover (spec §3
// "Lifecycle") is done separately by TakeoverPrincipal.
func (t *Table) Promote(serverSignature uint32) (*ConnectionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.pending[serverSignature]
	if !ok {
		return nil, fmt.Errorf("prudp: no pending record for server_signature %d", serverSignature)
	}
	delete(t.pending, serverSignature)
	t.live[serverSignature] = rec
	return rec, nil
}

// TakeoverPrincipal evicts any other live record already authenticated
// as principalID, returning it if one was removed.
func (t *Table) TakeoverPrincipal(principalID uint32, keep *ConnectionRecord) *ConnectionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	for sig, rec := range t.live {
		if rec == keep {
			continue
		}
		if rec.HasPrincipal && rec.PrincipalID == principalID {
			delete(t.live, sig)
			return rec
		}
	}
	return nil
}

// Get looks up a live record by server_signature.
func (t *Table) Get(serverSignature uint32) (*ConnectionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.live[serverSignature]
	return rec, ok
}

// GetPending looks up a pre-promoted record by server_signature.
func (t *Table) GetPending(serverSignature uint32) (*ConnectionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.pending[serverSignature]
	return rec, ok
}

// Remove evicts a live record, returning it if present.
func (t *Table) Remove(serverSignature uint32) (*ConnectionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.live[serverSignature]
	if ok {
		delete(t.live, serverSignature)
	}
	delete(t.pending, serverSignature)
	return rec, ok
}

// Sweep evicts every live record idle for longer than timeout, invoking
// onEvict for each (spec §4.3 "Idle sweep").
func (t *Table) Sweep(now time.Time, timeout time.Duration, onEvict func(*ConnectionRecord)) {
	t.mu.Lock()
	var evicted []*ConnectionRecord
	for sig, rec := range t.live {
		if now.Sub(rec.LastSeen) > timeout {
			delete(t.live, sig)
			evicted = append(evicted, rec)
		}
	}
	t.mu.Unlock()

	for _, rec := range evicted {
		onEvict(rec)
	}
}

// appendFragment stores a non-terminal fragment, enforcing the
// per-connection reassembly soft cap (spec §5 "Backpressure").
func (r *ConnectionRecord) appendFragment(fragmentID uint8, payload []byte, maxTotal int) error {
	r.FragmentBuffer[fragmentID] = payload
	total := 0
	for _, seg := range r.FragmentBuffer {
		total += len(seg)
	}
	if total > maxTotal {
		r.FragmentBuffer = make(map[uint8][]byte)
		return fmt.Errorf("prudp: fragment buffer exceeded %d bytes, reassembly aborted", maxTotal)
	}
	return nil
}

// reassemble concatenates fragments 1..N in ascending id order followed
// by the terminator's payload, aborting on any gap in the sequence
// (spec §4.3 "Missing fragments abort reassembly and clear the buffer").
func (r *ConnectionRecord) reassemble(terminatorPayload []byte) ([]byte, error) {
	ids := make([]int, 0, len(r.FragmentBuffer))
	for id := range r.FragmentBuffer {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	for i, id := range ids {
		if id != i+1 {
			r.FragmentBuffer = make(map[uint8][]byte)
			return nil, fmt.Errorf("prudp: gap in fragment sequence at position %d", i)
		}
	}

	var out []byte
	for _, id := range ids {
		out = append(out, r.FragmentBuffer[uint8(id)]...)
	}
	out = append(out, terminatorPayload...)
	r.FragmentBuffer = make(map[uint8][]byte)
	return out, nil
}
