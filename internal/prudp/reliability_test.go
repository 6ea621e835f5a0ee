package prudp

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/constants"
	"github.com/rdv2go/rdv2go/internal/crypto"
	"github.com/rdv2go/rdv2go/internal/ticket"
)

type stubDispatcher struct {
	response []byte
	lastSeen []byte
}

func (s *stubDispatcher) Dispatch(ctx context.Context, rec *ConnectionRecord, payload []byte) ([]byte, error) {
	s.lastSeen = payload
	return s.response, nil
}

type stubObserver struct {
	evicted []*ConnectionRecord
}

func (o *stubObserver) OnDisconnect(rec *ConnectionRecord) {
	o.evicted = append(o.evicted, rec)
}

type stubConnectObserver struct {
	connected []*ConnectionRecord
}

func (o *stubConnectObserver) OnConnect(rec *ConnectionRecord) {
	o.connected = append(o.connected, rec)
}

func newTestEngine(dispatcher Dispatcher) (*Engine, *ticket.Engine) {
	tickets := ticket.NewEngine([]byte("deployment-ticket-key"))
	return &Engine{
		Table:         NewTable(),
		Tickets:       tickets,
		Dispatcher:    dispatcher,
		Observer:      &stubObserver{},
		AccessKeyByte: 0x5A,
	}, tickets
}

func vport(streamType constants.StreamType) VPort {
	return VPort{Port: 1, StreamType: streamType}
}

// establishConnection drives a SYN+CONNECT handshake against e and
// returns the session key and the server_signature of the resulting
// live connection.
func establishConnection(t *testing.T, e *Engine, tickets *ticket.Engine, principalID uint32, now time.Time) ([16]byte, uint32) {
	t.Helper()

	from := Endpoint{IP: "127.0.0.1", Port: 60000}

	synPkt := Packet{
		Source:      vport(constants.StreamTypeDO),
		Destination: vport(constants.StreamTypeDO),
		Type:        constants.PacketTypeSyn,
		Flags:       uint8(constants.FlagNeedAck | constants.FlagHasSize),
		Sequence:    1,
	}
	synRaw, err := EncodePacket(synPkt, e.plainCtx())
	if err != nil {
		t.Fatalf("encoding SYN: %v", err)
	}

	replies, err := e.HandlePacket(context.Background(), synRaw, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(SYN): %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected exactly one SYN|ACK, got %d", len(replies))
	}
	synAck, err := ParsePacket(replies[0], e.plainCtx())
	if err != nil {
		t.Fatalf("parsing SYN|ACK: %v", err)
	}
	serverSig := synAck.ConnSignature

	var sessionKey [16]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x42}, 16))
	tkt := ticket.Ticket{
		PrincipalID: principalID,
		SessionKey:  sessionKey,
		ValidUntil:  now.Add(time.Hour),
	}
	sealed := tickets.Seal(tkt)

	challenge := uint32(777)
	reqPlain := codec.PutUint32(nil, 0)     // user_pid, unused by the server
	reqPlain = codec.PutUint32(reqPlain, 0) // connection_id, unused by the server
	reqPlain = codec.PutUint32(reqPlain, challenge)
	cipher, err := crypto.NewStreamCipher(sessionKey[:])
	if err != nil {
		t.Fatalf("creating session cipher: %v", err)
	}
	reqCipher := append([]byte(nil), reqPlain...)
	if err := cipher.XORKeyStream(reqCipher); err != nil {
		t.Fatalf("encrypting challenge: %v", err)
	}

	connectPkt := Packet{
		Source:        vport(constants.StreamTypeDO),
		Destination:   vport(constants.StreamTypeDO),
		Type:          constants.PacketTypeConnect,
		Flags:         uint8(constants.FlagReliable | constants.FlagHasSize),
		SessionID:     9,
		Signature:     serverSig,
		Sequence:      2,
		ConnSignature: 0xAAAABBBB,
		Payload:       append(append([]byte(nil), sealed...), reqCipher...),
	}
	connectRaw, err := EncodePacket(connectPkt, e.plainCtx())
	if err != nil {
		t.Fatalf("encoding CONNECT: %v", err)
	}

	replies, err = e.HandlePacket(context.Background(), connectRaw, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(CONNECT): %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected exactly one CONNECT|ACK, got %d", len(replies))
	}
	connectAck, err := ParsePacket(replies[0], e.plainCtx())
	if err != nil {
		t.Fatalf("parsing CONNECT|ACK: %v", err)
	}
	gotChallenge, _, err := codec.GetUint32(connectAck.Payload)
	if err != nil {
		t.Fatalf("decoding challenge response: %v", err)
	}
	if gotChallenge != challenge+1 {
		t.Fatalf("challenge response = %d, want %d", gotChallenge, challenge+1)
	}

	if _, ok := e.Table.Get(serverSig); !ok {
		t.Fatal("expected connection to be promoted to the live table")
	}

	return sessionKey, serverSig
}

func TestHandshakeEstablishesConnection(t *testing.T) {
	e, tickets := newTestEngine(nil)
	establishConnection(t, e, tickets, 99, time.Now())
}

func TestConnectNotifiesConnectObserver(t *testing.T) {
	e, tickets := newTestEngine(nil)
	connectObs := &stubConnectObserver{}
	e.ConnectObserver = connectObs

	establishConnection(t, e, tickets, 99, time.Now())

	if len(connectObs.connected) != 1 {
		t.Fatalf("expected ConnectObserver to be notified once, got %d", len(connectObs.connected))
	}
	if connectObs.connected[0].PrincipalID != 99 {
		t.Fatalf("expected notified record to carry principal 99, got %d", connectObs.connected[0].PrincipalID)
	}
}

func TestConnectAllocatesDistinctConnectionIDs(t *testing.T) {
	e, tickets := newTestEngine(nil)
	connectObs := &stubConnectObserver{}
	e.ConnectObserver = connectObs

	establishConnection(t, e, tickets, 1, time.Now())
	establishConnection(t, e, tickets, 2, time.Now())

	if len(connectObs.connected) != 2 {
		t.Fatalf("expected two CONNECT notifications, got %d", len(connectObs.connected))
	}
	first, second := connectObs.connected[0].ConnectionID, connectObs.connected[1].ConnectionID
	if first == 0 || second == 0 {
		t.Fatalf("expected both connections to get a nonzero connection_id, got %d and %d", first, second)
	}
	if first == second {
		t.Fatalf("expected distinct connection_id values, both were %d", first)
	}
}

func TestConnectRejectsExpiredTicketWithEmptyPayload(t *testing.T) {
	e, tickets := newTestEngine(nil)
	from := Endpoint{IP: "127.0.0.1", Port: 60000}
	now := time.Now()

	synPkt := Packet{
		Source: vport(constants.StreamTypeDO), Destination: vport(constants.StreamTypeDO),
		Type: constants.PacketTypeSyn, Flags: uint8(constants.FlagHasSize), Sequence: 1,
	}
	synRaw, _ := EncodePacket(synPkt, e.plainCtx())
	replies, err := e.HandlePacket(context.Background(), synRaw, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(SYN): %v", err)
	}
	synAck, _ := ParsePacket(replies[0], e.plainCtx())

	var sessionKey [16]byte
	tkt := ticket.Ticket{PrincipalID: 1, SessionKey: sessionKey, ValidUntil: now.Add(-time.Hour)}
	sealed := tickets.Seal(tkt)

	connectPkt := Packet{
		Source: vport(constants.StreamTypeDO), Destination: vport(constants.StreamTypeDO),
		Type: constants.PacketTypeConnect, Flags: uint8(constants.FlagHasSize),
		Signature: synAck.ConnSignature, Sequence: 2,
		Payload: append(sealed, make([]byte, 4)...),
	}
	connectRaw, _ := EncodePacket(connectPkt, e.plainCtx())

	replies, err = e.HandlePacket(context.Background(), connectRaw, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(CONNECT): %v", err)
	}
	connectAck, err := ParsePacket(replies[0], e.plainCtx())
	if err != nil {
		t.Fatalf("parsing CONNECT|ACK: %v", err)
	}
	if len(connectAck.Payload) != 0 {
		t.Fatalf("expected empty payload on ticket rejection, got %d bytes", len(connectAck.Payload))
	}
	if _, ok := e.Table.Get(synAck.ConnSignature); ok {
		t.Fatal("rejected CONNECT should not promote a live connection")
	}
}

func TestDataDeliversUnfragmentedPayloadAndAcks(t *testing.T) {
	dispatcher := &stubDispatcher{response: []byte("rmc-response")}
	e, tickets := newTestEngine(dispatcher)
	now := time.Now()
	sessionKey, serverSig := establishConnection(t, e, tickets, 7, now)

	from := Endpoint{IP: "127.0.0.1", Port: 60000}
	dataPkt := Packet{
		Source:      vport(constants.StreamTypeRVSec),
		Destination: vport(constants.StreamTypeRVSec),
		Type:        constants.PacketTypeData,
		Flags:       uint8(constants.FlagReliable | constants.FlagHasSize),
		Signature:   serverSig,
		Sequence:    10,
		FragmentID:  0,
		Payload:     []byte("rmc-request"),
	}
	ctx := EncodeContext{StreamKey: sessionKey[:], AccessKeyByte: e.AccessKeyByte}
	dataRaw, err := EncodePacket(dataPkt, ctx)
	if err != nil {
		t.Fatalf("encoding DATA: %v", err)
	}

	replies, err := e.HandlePacket(context.Background(), dataRaw, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(DATA): %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("expected an ACK and one response fragment, got %d replies", len(replies))
	}

	ackPkt, err := ParsePacket(replies[0], ctx)
	if err != nil {
		t.Fatalf("parsing ack: %v", err)
	}
	if !ackPkt.HasFlag(constants.FlagAck) || len(ackPkt.Payload) != 0 || ackPkt.Sequence != dataPkt.Sequence {
		t.Fatalf("unexpected ack packet: %+v", ackPkt)
	}

	respPkt, err := ParsePacket(replies[1], ctx)
	if err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if !bytes.Equal(respPkt.Payload, dispatcher.response) {
		t.Fatalf("response payload = %q, want %q", respPkt.Payload, dispatcher.response)
	}
	if !bytes.Equal(dispatcher.lastSeen, []byte("rmc-request")) {
		t.Fatalf("dispatcher saw %q, want %q", dispatcher.lastSeen, "rmc-request")
	}
}

func TestDataReassemblesFragments(t *testing.T) {
	dispatcher := &stubDispatcher{response: []byte("ok")}
	e, tickets := newTestEngine(dispatcher)
	now := time.Now()
	sessionKey, serverSig := establishConnection(t, e, tickets, 7, now)
	ctx := EncodeContext{StreamKey: sessionKey[:], AccessKeyByte: e.AccessKeyByte}
	from := Endpoint{IP: "127.0.0.1", Port: 60000}

	frag1 := Packet{
		Source: vport(constants.StreamTypeRVSec), Destination: vport(constants.StreamTypeRVSec),
		Type: constants.PacketTypeData, Flags: uint8(constants.FlagHasSize),
		Signature: serverSig, Sequence: 11, FragmentID: 1, Payload: []byte("part-one-"),
	}
	raw1, _ := EncodePacket(frag1, ctx)
	replies, err := e.HandlePacket(context.Background(), raw1, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(frag1): %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected only an ack for a non-terminal fragment, got %d", len(replies))
	}

	terminator := Packet{
		Source: vport(constants.StreamTypeRVSec), Destination: vport(constants.StreamTypeRVSec),
		Type: constants.PacketTypeData, Flags: uint8(constants.FlagHasSize),
		Signature: serverSig, Sequence: 12, FragmentID: 0, Payload: []byte("part-two"),
	}
	raw2, _ := EncodePacket(terminator, ctx)
	replies, err = e.HandlePacket(context.Background(), raw2, from, now)
	if err != nil {
		t.Fatalf("HandlePacket(terminator): %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("expected an ack and a response after the terminator, got %d", len(replies))
	}
	if !bytes.Equal(dispatcher.lastSeen, []byte("part-one-part-two")) {
		t.Fatalf("reassembled payload = %q", dispatcher.lastSeen)
	}
}

func TestDisconnectRemovesConnectionAndNotifiesObserver(t *testing.T) {
	e, tickets := newTestEngine(nil)
	now := time.Now()
	_, serverSig := establishConnection(t, e, tickets, 3, now)

	disconnectPkt := Packet{
		Source: vport(constants.StreamTypeDO), Destination: vport(constants.StreamTypeDO),
		Type: constants.PacketTypeDisconnect, Flags: uint8(constants.FlagHasSize),
		Signature: serverSig, Sequence: 99,
	}
	raw, _ := EncodePacket(disconnectPkt, e.plainCtx())

	replies, err := e.HandlePacket(context.Background(), raw, Endpoint{}, now)
	if err != nil {
		t.Fatalf("HandlePacket(DISCONNECT): %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected exactly one ack, got %d", len(replies))
	}
	if _, ok := e.Table.Get(serverSig); ok {
		t.Fatal("connection should be removed after DISCONNECT")
	}

	obs := e.Observer.(*stubObserver)
	if len(obs.evicted) != 1 || obs.evicted[0].ServerSignature != serverSig {
		t.Fatalf("observer should have been notified of the disconnect, got %+v", obs.evicted)
	}
}

func TestPingRefreshesLastSeen(t *testing.T) {
	e, tickets := newTestEngine(nil)
	now := time.Now()
	_, serverSig := establishConnection(t, e, tickets, 3, now)

	later := now.Add(30 * time.Second)
	pingPkt := Packet{
		Source: vport(constants.StreamTypeDO), Destination: vport(constants.StreamTypeDO),
		Type: constants.PacketTypePing, Flags: uint8(constants.FlagHasSize),
		Signature: serverSig, Sequence: 5,
	}
	raw, _ := EncodePacket(pingPkt, e.plainCtx())

	replies, err := e.HandlePacket(context.Background(), raw, Endpoint{}, later)
	if err != nil {
		t.Fatalf("HandlePacket(PING): %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected exactly one ack, got %d", len(replies))
	}

	rec, ok := e.Table.Get(serverSig)
	if !ok {
		t.Fatal("connection should still be live")
	}
	if !rec.LastSeen.Equal(later) {
		t.Fatalf("LastSeen = %v, want %v", rec.LastSeen, later)
	}
}

func TestSweepIdleEvictsExpiredConnections(t *testing.T) {
	e, tickets := newTestEngine(nil)
	e.SessionTimeout = time.Minute
	now := time.Now()
	_, serverSig := establishConnection(t, e, tickets, 3, now)

	e.SweepIdle(now.Add(2 * time.Minute))

	if _, ok := e.Table.Get(serverSig); ok {
		t.Fatal("expected idle connection to be swept")
	}
	obs := e.Observer.(*stubObserver)
	if len(obs.evicted) != 1 {
		t.Fatalf("expected sweep to notify the observer once, got %d", len(obs.evicted))
	}
}
