// Package prudp implements the PRUDP transport (spec §4.2–§4.3, wire
// layout in §6): packet framing and RC4 encryption (L2), the connection
// table (L3), and the reliability state machine (L4).
package prudp

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rdv2go/rdv2go/internal/constants"
	"github.com/rdv2go/rdv2go/internal/crypto"
)

// ErrTruncated is returned when a packet is shorter than its declared
// fields require.
var ErrTruncated = errors.New("prudp: truncated packet")

// VPort is a (port, stream type) pair packed into one byte: low nibble is
// the port, high nibble is the stream type (spec §4.2 step 1, §6).
type VPort struct {
	Port       uint8
	StreamType constants.StreamType
}

func (v VPort) encode() byte {
	return v.Port&0x0F | uint8(v.StreamType)<<4
}

func decodeVPort(b byte) VPort {
	return VPort{Port: b & 0x0F, StreamType: constants.StreamType(b >> 4)}
}

// Packet is a decoded PRUDP packet (spec §6 wire layout).
type Packet struct {
	Source      VPort
	Destination VPort
	Type        constants.PacketType
	Flags       uint8 // high 5 bits of type_and_flags, as individual constants.Flag* bits
	SessionID   uint8
	Signature   uint32
	Sequence    uint16

	ConnSignature uint32 // valid only for SYN/CONNECT
	HasConnSig    bool

	FragmentID uint8 // valid only for DATA
	HasFragID  bool

	Payload []byte

	Checksum byte
}

// HasFlag reports whether the given flag bit is set.
func (p Packet) HasFlag(f constants.PacketFlag) bool {
	return p.Flags&uint8(f) != 0
}

// EncodeContext carries the per-stream parameters needed to encode or
// decode a packet's payload: whether this stream applies RC4 + optional
// zlib compression (spec §4.2 step 6, "non-SYN packets on the RVSec
// stream"), the stream's access-key-derived checksum byte (§4.2.1), and
// whether outgoing DATA should be compressed.
type EncodeContext struct {
	StreamKey     []byte // RC4 key for this stream, derived per §4.6
	AccessKeyByte byte
	Compress      bool
}

// securePayload reports whether a packet's payload goes through RC4 (+
// optional zlib) at the transport layer. SYN never carries a secure
// payload, and CONNECT's ticket||request payload is decrypted by hand in
// the reliability engine using the ticket's session key (spec §4.3 "On
// CONNECT"), not by this generic per-stream transform.
func (c EncodeContext) securePayload(pkt *Packet) bool {
	return pkt.Type != constants.PacketTypeSyn &&
		pkt.Type != constants.PacketTypeConnect &&
		pkt.Source.StreamType == constants.StreamTypeRVSec
}

// PeekRouting decodes just enough of a packet (vports through the
// optional fragment id) to route it to a connection and a handler,
// without touching the payload. The reliability engine uses this before
// it knows which stream key, if any, applies to the payload.
func PeekRouting(data []byte) (Packet, error) {
	r := bytes.NewReader(data)
	var p Packet

	srcByte, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: source vport: %v", ErrTruncated, err)
	}
	p.Source = decodeVPort(srcByte)

	dstByte, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: destination vport: %v", ErrTruncated, err)
	}
	p.Destination = decodeVPort(dstByte)

	typeFlags, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: type/flags: %v", ErrTruncated, err)
	}
	p.Type = constants.PacketType(typeFlags & 0x07)
	p.Flags = typeFlags >> 3

	sessionID, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: session id: %v", ErrTruncated, err)
	}
	p.SessionID = sessionID

	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return p, fmt.Errorf("%w: signature: %v", ErrTruncated, err)
	}
	p.Signature = binary.LittleEndian.Uint32(sig[:])

	var seq [2]byte
	if _, err := io.ReadFull(r, seq[:]); err != nil {
		return p, fmt.Errorf("%w: sequence: %v", ErrTruncated, err)
	}
	p.Sequence = binary.LittleEndian.Uint16(seq[:])

	if p.Type == constants.PacketTypeSyn || p.Type == constants.PacketTypeConnect {
		var cs [4]byte
		if _, err := io.ReadFull(r, cs[:]); err != nil {
			return p, fmt.Errorf("%w: conn signature: %v", ErrTruncated, err)
		}
		p.ConnSignature = binary.LittleEndian.Uint32(cs[:])
		p.HasConnSig = true
	}

	if p.Type == constants.PacketTypeData {
		fragID, err := r.ReadByte()
		if err != nil {
			return p, fmt.Errorf("%w: fragment id: %v", ErrTruncated, err)
		}
		p.FragmentID = fragID
		p.HasFragID = true
	}

	return p, nil
}

// ParsePacket decodes one PRUDP packet from data (spec §4.2 "Decoding
// steps"). It does not consume a length prefix — the caller (the UDP
// receive loop) already has exactly one datagram's bytes.
func ParsePacket(data []byte, ctx EncodeContext) (Packet, error) {
	r := bytes.NewReader(data)
	var p Packet

	srcByte, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: source vport: %v", ErrTruncated, err)
	}
	p.Source = decodeVPort(srcByte)

	dstByte, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: destination vport: %v", ErrTruncated, err)
	}
	p.Destination = decodeVPort(dstByte)

	typeFlags, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: type/flags: %v", ErrTruncated, err)
	}
	p.Type = constants.PacketType(typeFlags & 0x07)
	p.Flags = typeFlags >> 3

	sessionID, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: session id: %v", ErrTruncated, err)
	}
	p.SessionID = sessionID

	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return p, fmt.Errorf("%w: signature: %v", ErrTruncated, err)
	}
	p.Signature = binary.LittleEndian.Uint32(sig[:])

	var seq [2]byte
	if _, err := io.ReadFull(r, seq[:]); err != nil {
		return p, fmt.Errorf("%w: sequence: %v", ErrTruncated, err)
	}
	p.Sequence = binary.LittleEndian.Uint16(seq[:])

	if p.Type == constants.PacketTypeSyn || p.Type == constants.PacketTypeConnect {
		var cs [4]byte
		if _, err := io.ReadFull(r, cs[:]); err != nil {
			return p, fmt.Errorf("%w: conn signature: %v", ErrTruncated, err)
		}
		p.ConnSignature = binary.LittleEndian.Uint32(cs[:])
		p.HasConnSig = true
	}

	if p.Type == constants.PacketTypeData {
		fragID, err := r.ReadByte()
		if err != nil {
			return p, fmt.Errorf("%w: fragment id: %v", ErrTruncated, err)
		}
		p.FragmentID = fragID
		p.HasFragID = true
	}

	var payloadLen int
	if p.HasFlag(constants.FlagHasSize) {
		var sz [2]byte
		if _, err := io.ReadFull(r, sz[:]); err != nil {
			return p, fmt.Errorf("%w: payload size: %v", ErrTruncated, err)
		}
		payloadLen = int(binary.LittleEndian.Uint16(sz[:]))
	} else {
		// payload length = total - position - 1 (reserve a checksum byte)
		remaining := r.Len()
		payloadLen = remaining - 1
		if payloadLen < 0 {
			return p, fmt.Errorf("%w: no room for checksum byte", ErrTruncated)
		}
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return p, fmt.Errorf("%w: payload: %v", ErrTruncated, err)
	}

	if ctx.securePayload(&p) {
		payload, err = decryptPayload(payload, ctx)
		if err != nil {
			return p, fmt.Errorf("decrypting payload: %w", err)
		}
	}
	p.Payload = payload

	checksum, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: checksum: %v", ErrTruncated, err)
	}
	p.Checksum = checksum

	return p, nil
}

// decryptPayload reverses EncodePacket's secure-payload transform: XOR
// the RC4 keystream, then read the leading compression flag and
// zlib-inflate the remainder if set (spec §4.2 step 6).
func decryptPayload(payload []byte, ctx EncodeContext) ([]byte, error) {
	out := make([]byte, len(payload))
	copy(out, payload)

	cipher, err := crypto.NewStreamCipher(ctx.StreamKey)
	if err != nil {
		return nil, fmt.Errorf("creating rc4 cipher: %w", err)
	}
	if err := cipher.XORKeyStream(out); err != nil {
		return nil, fmt.Errorf("applying rc4 keystream: %w", err)
	}

	if len(out) == 0 {
		return out, nil
	}
	compressed := out[0] != 0
	rest := out[1:]
	if !compressed {
		return rest, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, fmt.Errorf("opening zlib reader: %w", err)
	}
	defer zr.Close()
	inflated, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating payload: %w", err)
	}
	return inflated, nil
}

// encryptPayload is the mirror of decryptPayload, applied before framing
// an outgoing secure packet.
func encryptPayload(payload []byte, ctx EncodeContext) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var flagged []byte
	if ctx.Compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("deflating payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("closing zlib writer: %w", err)
		}
		flagged = append([]byte{1}, buf.Bytes()...)
	} else {
		flagged = append([]byte{0}, payload...)
	}

	cipher, err := crypto.NewStreamCipher(ctx.StreamKey)
	if err != nil {
		return nil, fmt.Errorf("creating rc4 cipher: %w", err)
	}
	if err := cipher.XORKeyStream(flagged); err != nil {
		return nil, fmt.Errorf("applying rc4 keystream: %w", err)
	}
	return flagged, nil
}

// EncodePacket serializes a PRUDP packet, applying RC4 + optional
// compression to the payload for non-SYN RVSec-stream packets and
// computing the trailer checksum (spec §4.2 "Encoding reverses the
// above").
func EncodePacket(p Packet, ctx EncodeContext) ([]byte, error) {
	payload := p.Payload
	if ctx.securePayload(&p) {
		var err error
		payload, err = encryptPayload(payload, ctx)
		if err != nil {
			return nil, fmt.Errorf("encrypting payload: %w", err)
		}
	}

	var buf []byte
	buf = append(buf, p.Source.encode())
	buf = append(buf, p.Destination.encode())
	buf = append(buf, byte(p.Type)&0x07|p.Flags<<3)
	buf = append(buf, p.SessionID)

	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], p.Signature)
	buf = append(buf, sig[:]...)

	var seq [2]byte
	binary.LittleEndian.PutUint16(seq[:], p.Sequence)
	buf = append(buf, seq[:]...)

	if p.Type == constants.PacketTypeSyn || p.Type == constants.PacketTypeConnect {
		var cs [4]byte
		binary.LittleEndian.PutUint32(cs[:], p.ConnSignature)
		buf = append(buf, cs[:]...)
	}

	if p.Type == constants.PacketTypeData {
		buf = append(buf, p.FragmentID)
	}

	hasSize := p.Flags&uint8(constants.FlagHasSize) != 0
	if hasSize {
		var sz [2]byte
		binary.LittleEndian.PutUint16(sz[:], uint16(len(payload)))
		buf = append(buf, sz[:]...)
	}
	buf = append(buf, payload...)

	checksum := crypto.PacketChecksum(buf, ctx.AccessKeyByte)
	buf = append(buf, checksum)

	return buf, nil
}

// SplitFragments splits payload into DATA fragments no larger than
// constants.MaxFragmentPayload bytes each, returned in the wire
// transmission order: highest fragment id first, the zero-id terminator
// last (spec §4.2 "A multi-packet response is fragmented... fragments
// are transmitted in reverse... so the receiver knows reassembly is
// complete on the terminator").
func SplitFragments(payload []byte) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}

	var chunks [][]byte
	for start := 0; start < len(payload); start += constants.MaxFragmentPayload {
		end := start + constants.MaxFragmentPayload
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}

	// chunks[0..] are in ascending logical order; the terminator (last
	// chunk, fragment id 0) is sent last but every other chunk is sent
	// highest-id-first, i.e. reverse of chunks[:len-1].
	n := len(chunks)
	out := make([][]byte, 0, n)
	for i := n - 2; i >= 0; i-- {
		out = append(out, chunks[i])
	}
	out = append(out, chunks[n-1])
	return out
}
