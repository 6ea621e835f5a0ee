package prudp

import (
	"bytes"
	"testing"

	"github.com/rdv2go/rdv2go/internal/constants"
)

func plainCtx() EncodeContext {
	return EncodeContext{StreamKey: []byte("unused"), AccessKeyByte: 0xAB}
}

func secureCtx() EncodeContext {
	return EncodeContext{StreamKey: []byte("session-rc4-key"), AccessKeyByte: 0xAB}
}

func TestEncodeParseRoundTripPlain(t *testing.T) {
	p := Packet{
		Source:      VPort{Port: 1, StreamType: constants.StreamTypeDO},
		Destination: VPort{Port: 1, StreamType: constants.StreamTypeRV},
		Type:        constants.PacketTypeSyn,
		Flags:       uint8(constants.FlagReliable | constants.FlagNeedAck | constants.FlagHasSize),
		SessionID:   7,
		Signature:   0xDEADBEEF,
		Sequence:    42,

		ConnSignature: 0xCAFEBABE,
		HasConnSig:    true,

		Payload: []byte("hello syn"),
	}

	ctx := plainCtx()
	encoded, err := EncodePacket(p, ctx)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	got, err := ParsePacket(encoded, ctx)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}

	if got.Source != p.Source || got.Destination != p.Destination {
		t.Fatalf("vport mismatch: got %+v/%+v want %+v/%+v", got.Source, got.Destination, p.Source, p.Destination)
	}
	if got.Type != p.Type || got.Flags != p.Flags {
		t.Fatalf("type/flags mismatch: got %v/%v want %v/%v", got.Type, got.Flags, p.Type, p.Flags)
	}
	if got.SessionID != p.SessionID || got.Signature != p.Signature || got.Sequence != p.Sequence {
		t.Fatalf("header field mismatch: %+v vs %+v", got, p)
	}
	if !got.HasConnSig || got.ConnSignature != p.ConnSignature {
		t.Fatalf("conn signature mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("payload mismatch: got %q want %q", got.Payload, p.Payload)
	}
}

func TestEncodeParseRoundTripSecureRVSec(t *testing.T) {
	p := Packet{
		Source:      VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Destination: VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Type:        constants.PacketTypeData,
		Flags:       uint8(constants.FlagReliable | constants.FlagHasSize),
		SessionID:   1,
		Signature:   1,
		Sequence:    1,
		FragmentID:  0,
		HasFragID:   true,
		Payload:     []byte("secret rmc call payload"),
	}

	ctx := secureCtx()
	encoded, err := EncodePacket(p, ctx)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	got, err := ParsePacket(encoded, ctx)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("secure payload mismatch: got %q want %q", got.Payload, p.Payload)
	}
	if !got.HasFragID || got.FragmentID != p.FragmentID {
		t.Fatalf("fragment id mismatch: %+v", got)
	}
}

func TestEncodeParseRoundTripSecureEmptyPayload(t *testing.T) {
	p := Packet{
		Source:      VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Destination: VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Type:        constants.PacketTypeData,
		Flags:       uint8(constants.FlagAck | constants.FlagHasSize),
		SessionID:   1,
		Signature:   1,
		Sequence:    1,
	}

	ctx := secureCtx()
	encoded, err := EncodePacket(p, ctx)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	got, err := ParsePacket(encoded, ctx)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected an empty ack payload to stay empty on the wire, got %q", got.Payload)
	}
}

func TestEncodeParseRoundTripSecureCompressed(t *testing.T) {
	p := Packet{
		Source:      VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Destination: VPort{Port: 1, StreamType: constants.StreamTypeRVSec},
		Type:        constants.PacketTypeData,
		Flags:       uint8(constants.FlagReliable | constants.FlagHasSize),
		Payload:     bytes.Repeat([]byte("compress-me "), 100),
	}

	ctx := secureCtx()
	ctx.Compress = true
	encoded, err := EncodePacket(p, ctx)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	got, err := ParsePacket(encoded, ctx)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("compressed payload mismatch")
	}
}

func TestParsePacketRejectsTruncated(t *testing.T) {
	if _, err := ParsePacket([]byte{1, 2}, plainCtx()); err == nil {
		t.Fatal("expected truncated packet to be rejected")
	}
}

func TestParsePacketWithoutHasSize(t *testing.T) {
	p := Packet{
		Source:      VPort{Port: 1, StreamType: constants.StreamTypeDO},
		Destination: VPort{Port: 1, StreamType: constants.StreamTypeDO},
		Type:        constants.PacketTypePing,
		Payload:     []byte("ping"),
	}
	ctx := plainCtx()
	encoded, err := EncodePacket(p, ctx)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	got, err := ParsePacket(encoded, ctx)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("payload mismatch without HAS_SIZE: got %q want %q", got.Payload, p.Payload)
	}
}

func TestSplitFragmentsOrderAndTerminator(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAA}, constants.MaxFragmentPayload*2+10)
	fragments := SplitFragments(payload)
	if len(fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(fragments))
	}
	if len(fragments[len(fragments)-1]) != 10 {
		t.Fatalf("expected terminator fragment to be the short final chunk (10 bytes), got %d", len(fragments[len(fragments)-1]))
	}
	if len(fragments[0]) != constants.MaxFragmentPayload {
		t.Fatalf("expected first transmitted fragment to be full size, got %d", len(fragments[0]))
	}
}

func TestSplitFragmentsSingleChunk(t *testing.T) {
	payload := []byte("short payload")
	fragments := SplitFragments(payload)
	if len(fragments) != 1 {
		t.Fatalf("expected single fragment for small payload, got %d", len(fragments))
	}
	if !bytes.Equal(fragments[0], payload) {
		t.Fatalf("single fragment mismatch: got %q want %q", fragments[0], payload)
	}
}

func TestSplitFragmentsEmptyPayload(t *testing.T) {
	fragments := SplitFragments(nil)
	if len(fragments) != 1 || len(fragments[0]) != 0 {
		t.Fatalf("expected a single empty fragment, got %+v", fragments)
	}
}
