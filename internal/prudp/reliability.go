package prudp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/constants"
	"github.com/rdv2go/rdv2go/internal/crypto"
	"github.com/rdv2go/rdv2go/internal/ticket"
)

// Dispatcher hands a reassembled RMC request buffer to L5 and returns
// the encoded response buffer (spec §2 "Data flow").
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *ConnectionRecord, payload []byte) ([]byte, error)
}

// DisconnectObserver is notified when a connection is removed: by an
// explicit DISCONNECT, by idle eviction (spec §4.3 "Idle sweep"), or by
// a duplicate-login takeover at CONNECT.
type DisconnectObserver interface {
	OnDisconnect(rec *ConnectionRecord)
}

// ConnectObserver is notified when a connection successfully
// authenticates via CONNECT, right after its principal is bound into
// the table (spec §4.3 "On CONNECT").
type ConnectObserver interface {
	OnConnect(rec *ConnectionRecord)
}

// DisconnectObservers fans a disconnect notification out to every
// observer in the slice, in order, so the Engine can drive both the
// in-memory client registry and a persistent teardown path off a single
// Observer field.
type DisconnectObservers []DisconnectObserver

func (ds DisconnectObservers) OnDisconnect(rec *ConnectionRecord) {
	for _, d := range ds {
		d.OnDisconnect(rec)
	}
}

// ConnectObservers is the ConnectObserver analog of DisconnectObservers.
type ConnectObservers []ConnectObserver

func (cs ConnectObservers) OnConnect(rec *ConnectionRecord) {
	for _, c := range cs {
		c.OnConnect(rec)
	}
}

// TicketOpener opens a sealed ticket (spec §4.6). Satisfied by
// *ticket.Engine; an interface here keeps this package decoupled from
// the ticket engine's construction.
type TicketOpener interface {
	Open(sealed []byte, now time.Time) (ticket.Ticket, error)
}

// Engine runs the SYN/CONNECT/DATA/DISCONNECT/PING state machine over a
// connection Table (spec §4.3).
type Engine struct {
	Table           *Table
	Tickets         TicketOpener
	Dispatcher      Dispatcher
	Observer        DisconnectObserver
	ConnectObserver ConnectObserver
	Logger          *slog.Logger

	// AccessKeyByte is the checksum key shared by every stream on this
	// server (spec §4.2.1).
	AccessKeyByte byte

	// SessionTimeout and MaxReassemblySize default to the constants
	// package's values when zero.
	SessionTimeout    time.Duration
	MaxReassemblySize int
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) sessionTimeout() time.Duration {
	if e.SessionTimeout > 0 {
		return e.SessionTimeout
	}
	return constants.SessionTimeout
}

func (e *Engine) maxReassemblySize() int {
	if e.MaxReassemblySize > 0 {
		return e.MaxReassemblySize
	}
	return constants.MaxReassemblySize
}

// plainCtx is the encode/decode context used for packets that never
// carry a secure payload transform at this layer: SYN, CONNECT, and
// anything not on the RVSec stream.
func (e *Engine) plainCtx() EncodeContext {
	return EncodeContext{AccessKeyByte: e.AccessKeyByte}
}

func (e *Engine) secureCtx(rec *ConnectionRecord) EncodeContext {
	return EncodeContext{
		StreamKey:     rec.StreamKey,
		AccessKeyByte: e.AccessKeyByte,
		Compress:      rec.Compress,
	}
}

// HandlePacket processes one raw UDP datagram from from, returning zero
// or more raw datagrams to send back in response.
func (e *Engine) HandlePacket(ctx context.Context, raw []byte, from Endpoint, now time.Time) ([][]byte, error) {
	probe, err := PeekRouting(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing packet header: %w", err)
	}

	switch probe.Type {
	case constants.PacketTypeSyn:
		return e.handleSyn(probe, from, now)
	case constants.PacketTypeConnect:
		return e.handleConnect(ctx, raw, probe, from, now)
	case constants.PacketTypeData:
		return e.handleData(ctx, raw, probe, now)
	case constants.PacketTypeDisconnect:
		return e.handleDisconnect(probe, now)
	case constants.PacketTypePing:
		return e.handlePing(probe, now)
	default:
		e.logger().Debug("ignoring unsupported packet type", "type", probe.Type)
		return nil, nil
	}
}

func ack(req Packet, rec *ConnectionRecord) Packet {
	return Packet{
		Source:      req.Destination,
		Destination: req.Source,
		Type:        req.Type,
		Flags:       uint8(constants.FlagAck | constants.FlagHasSize),
		SessionID:   rec.ServerSessionID,
		Signature:   rec.ServerSignature,
		Sequence:    req.Sequence,
	}
}

func (e *Engine) handleSyn(req Packet, from Endpoint, now time.Time) ([][]byte, error) {
	rec, err := e.Table.CreateOnSyn(now)
	if err != nil {
		return nil, fmt.Errorf("allocating connection record: %w", err)
	}
	rec.ClientEndpoint = from

	reply := Packet{
		Source:        req.Destination,
		Destination:   req.Source,
		Type:          constants.PacketTypeSyn,
		Flags:         uint8(constants.FlagAck | constants.FlagHasSize),
		Sequence:      req.Sequence,
		ConnSignature: rec.ServerSignature,
	}
	encoded, err := EncodePacket(reply, e.plainCtx())
	if err != nil {
		return nil, fmt.Errorf("encoding SYN|ACK: %w", err)
	}
	return [][]byte{encoded}, nil
}

func (e *Engine) handleConnect(ctx context.Context, raw []byte, probe Packet, from Endpoint, now time.Time) ([][]byte, error) {
	rec, ok := e.Table.GetPending(probe.Signature)
	if !ok {
		e.logger().Warn("CONNECT for unknown server_signature", "signature", probe.Signature)
		return nil, nil
	}

	full, err := ParsePacket(raw, e.plainCtx())
	if err != nil {
		return nil, fmt.Errorf("parsing CONNECT packet: %w", err)
	}

	emptyReply := func() ([][]byte, error) {
		reply := Packet{
			Source:        full.Destination,
			Destination:   full.Source,
			Type:          constants.PacketTypeConnect,
			Flags:         uint8(constants.FlagAck | constants.FlagHasSize),
			Signature:     rec.ServerSignature,
			Sequence:      full.Sequence,
			ConnSignature: rec.ServerSignature,
		}
		encoded, err := EncodePacket(reply, e.plainCtx())
		if err != nil {
			return nil, fmt.Errorf("encoding empty CONNECT|ACK: %w", err)
		}
		return [][]byte{encoded}, nil
	}

	if len(full.Payload) < ticket.SealedSize {
		e.logger().Info("CONNECT payload too short for a sealed ticket")
		return emptyReply()
	}
	sealed := full.Payload[:ticket.SealedSize]
	reqCipher := full.Payload[ticket.SealedSize:]

	tkt, err := e.Tickets.Open(sealed, now)
	if err != nil {
		e.logger().Info("rejecting CONNECT with invalid ticket", "error", err)
		return emptyReply()
	}

	cipher, err := crypto.NewStreamCipher(tkt.SessionKey[:])
	if err != nil {
		return nil, fmt.Errorf("creating session-key cipher: %w", err)
	}
	reqPlain := make([]byte, len(reqCipher))
	copy(reqPlain, reqCipher)
	if err := cipher.XORKeyStream(reqPlain); err != nil {
		return nil, fmt.Errorf("decrypting CONNECT request: %w", err)
	}

	if len(reqPlain) < 12 {
		e.logger().Info("malformed CONNECT request, missing challenge")
		return emptyReply()
	}
	challenge, _, err := codec.GetUint32(reqPlain[8:])
	if err != nil {
		e.logger().Info("malformed CONNECT request, missing challenge")
		return emptyReply()
	}

	serverSessionID, err := randomUint8()
	if err != nil {
		return nil, err
	}

	rec.ClientSignature = full.ConnSignature
	rec.ClientEndpoint = from
	rec.ClientSessionID = full.SessionID
	rec.ServerSessionID = serverSessionID
	rec.PrincipalID = tkt.PrincipalID
	rec.HasPrincipal = true
	rec.StreamKey = append([]byte(nil), tkt.SessionKey[:]...)
	rec.LastSeen = now
	rec.ConnectionID = nextConnectionID()

	if _, err := e.Table.Promote(rec.ServerSignature); err != nil {
		return nil, fmt.Errorf("promoting connection: %w", err)
	}
	if evicted := e.Table.TakeoverPrincipal(tkt.PrincipalID, rec); evicted != nil {
		e.logger().Info("duplicate login, evicting prior connection", "principal_id", tkt.PrincipalID)
		if e.Observer != nil {
			e.Observer.OnDisconnect(evicted)
		}
	}
	if e.ConnectObserver != nil {
		e.ConnectObserver.OnConnect(rec)
	}

	var respPayload []byte
	respPayload = codec.PutUint32(respPayload, challenge+1)

	reply := Packet{
		Source:        full.Destination,
		Destination:   full.Source,
		Type:          constants.PacketTypeConnect,
		Flags:         uint8(constants.FlagAck | constants.FlagHasSize),
		SessionID:     rec.ServerSessionID,
		Signature:     rec.ServerSignature,
		Sequence:      full.Sequence,
		ConnSignature: rec.ServerSignature,
		Payload:       respPayload,
	}
	encoded, err := EncodePacket(reply, e.plainCtx())
	if err != nil {
		return nil, fmt.Errorf("encoding CONNECT|ACK: %w", err)
	}
	return [][]byte{encoded}, nil
}

func (e *Engine) handleData(ctx context.Context, raw []byte, probe Packet, now time.Time) ([][]byte, error) {
	rec, ok := e.Table.Get(probe.Signature)
	if !ok {
		e.logger().Warn("DATA for unknown connection", "signature", probe.Signature)
		return nil, nil
	}
	rec.LastSeen = now

	full, err := ParsePacket(raw, e.secureCtx(rec))
	if err != nil {
		return nil, fmt.Errorf("parsing DATA packet: %w", err)
	}

	out := [][]byte{}
	ackPkt := ack(full, rec)
	ackBytes, err := EncodePacket(ackPkt, e.secureCtx(rec))
	if err != nil {
		return nil, fmt.Errorf("encoding DATA ack: %w", err)
	}
	out = append(out, ackBytes)

	var assembled []byte
	switch {
	case full.FragmentID != 0:
		if err := rec.appendFragment(full.FragmentID, full.Payload, e.maxReassemblySize()); err != nil {
			e.logger().Warn("fragment reassembly aborted", "error", err)
		}
		return out, nil
	case len(rec.FragmentBuffer) == 0:
		assembled = full.Payload
	default:
		assembled, err = rec.reassemble(full.Payload)
		if err != nil {
			e.logger().Warn("fragment reassembly aborted", "error", err)
			return out, nil
		}
	}

	if e.Dispatcher == nil {
		return out, nil
	}
	respPayload, err := e.Dispatcher.Dispatch(ctx, rec, assembled)
	if err != nil {
		return nil, fmt.Errorf("dispatching RMC request: %w", err)
	}
	if respPayload == nil {
		return out, nil
	}

	fragments := SplitFragments(respPayload)
	ctxEnc := e.secureCtx(rec)
	for i, fragPayload := range fragments {
		rec.ServerSequence++
		fragmentID := uint8(0)
		if i < len(fragments)-1 {
			fragmentID = uint8(len(fragments) - 1 - i)
		}
		dataPkt := Packet{
			Source:      full.Destination,
			Destination: full.Source,
			Type:        constants.PacketTypeData,
			Flags:       uint8(constants.FlagReliable | constants.FlagHasSize),
			SessionID:   rec.ServerSessionID,
			Signature:   rec.ServerSignature,
			Sequence:    rec.ServerSequence,
			FragmentID:  fragmentID,
			Payload:     fragPayload,
		}
		encoded, err := EncodePacket(dataPkt, ctxEnc)
		if err != nil {
			return nil, fmt.Errorf("encoding DATA response fragment: %w", err)
		}
		out = append(out, encoded)
	}
	return out, nil
}

func (e *Engine) handleDisconnect(probe Packet, now time.Time) ([][]byte, error) {
	rec, ok := e.Table.Remove(probe.Signature)
	if !ok {
		return nil, nil
	}
	replyPkt := ack(probe, rec)
	encoded, err := EncodePacket(replyPkt, e.secureCtx(rec))
	if err != nil {
		return nil, fmt.Errorf("encoding DISCONNECT ack: %w", err)
	}
	if e.Observer != nil {
		e.Observer.OnDisconnect(rec)
	}
	return [][]byte{encoded}, nil
}

func (e *Engine) handlePing(probe Packet, now time.Time) ([][]byte, error) {
	rec, ok := e.Table.Get(probe.Signature)
	if !ok {
		return nil, nil
	}
	rec.LastSeen = now
	replyPkt := ack(probe, rec)
	encoded, err := EncodePacket(replyPkt, e.secureCtx(rec))
	if err != nil {
		return nil, fmt.Errorf("encoding PING ack: %w", err)
	}
	return [][]byte{encoded}, nil
}

// SweepIdle evicts connections idle beyond the configured session
// timeout, notifying the observer for each (spec §4.3 "Idle sweep").
func (e *Engine) SweepIdle(now time.Time) {
	e.Table.Sweep(now, e.sessionTimeout(), func(rec *ConnectionRecord) {
		if e.Observer != nil {
			e.Observer.OnDisconnect(rec)
		}
	})
}
