// Package rmc implements the Remote Method Call layer (spec §4.4):
// request/response header framing, the packed 32-bit error code, and a
// table-driven protocol_id → method_id dispatcher.
package rmc

import (
	"errors"
	"fmt"

	"github.com/rdv2go/rdv2go/internal/codec"
)

// ErrTruncated is returned when an RMC header is shorter than its
// declared payload length requires.
var ErrTruncated = errors.New("rmc: truncated header")

// compactProtocolIDLimit is the largest protocol id that fits in the
// low 7 bits of the single-byte discriminator form (spec §4.4: "high
// bit set means the low 7 bits are the protocol id").
const compactProtocolIDLimit = 0x7F

func putProtocolID(buf []byte, protocolID uint16) []byte {
	if protocolID <= compactProtocolIDLimit {
		return codec.PutUint8(buf, uint8(protocolID)|0x80)
	}
	buf = codec.PutUint8(buf, 0)
	return codec.PutUint16(buf, protocolID)
}

func getProtocolID(rest []byte) (uint16, []byte, error) {
	b, rest, err := codec.GetUint8(rest)
	if err != nil {
		return 0, nil, fmt.Errorf("decoding protocol discriminator: %w", err)
	}
	if b&0x80 != 0 {
		return uint16(b &^ 0x80), rest, nil
	}
	id, rest, err := codec.GetUint16(rest)
	if err != nil {
		return 0, nil, fmt.Errorf("decoding extended protocol id: %w", err)
	}
	return id, rest, nil
}

// Request is a decoded RMC call (spec §4.4 "Request header").
type Request struct {
	ProtocolID uint16
	CallID     uint32
	MethodID   uint32
	Parameters []byte
}

// Encode serializes r, including the leading 4-byte payload length.
func (r Request) Encode() []byte {
	var body []byte
	body = putProtocolID(body, r.ProtocolID)
	body = codec.PutUint32(body, r.CallID)
	body = codec.PutUint32(body, r.MethodID)
	body = append(body, r.Parameters...)

	out := codec.PutUint32(nil, uint32(len(body)))
	return append(out, body...)
}

// DecodeRequest parses a request header and its trailing parameters
// from buf (spec §4.4 "Request header").
func DecodeRequest(buf []byte) (Request, error) {
	length, rest, err := codec.GetUint32(buf)
	if err != nil {
		return Request{}, fmt.Errorf("%w: payload length: %v", ErrTruncated, err)
	}
	if uint64(len(rest)) < uint64(length) {
		return Request{}, fmt.Errorf("%w: declared length %d exceeds remaining %d bytes", ErrTruncated, length, len(rest))
	}
	body := rest[:length]

	protocolID, body, err := getProtocolID(body)
	if err != nil {
		return Request{}, err
	}
	callID, body, err := codec.GetUint32(body)
	if err != nil {
		return Request{}, fmt.Errorf("%w: call id: %v", ErrTruncated, err)
	}
	methodID, body, err := codec.GetUint32(body)
	if err != nil {
		return Request{}, fmt.Errorf("%w: method id: %v", ErrTruncated, err)
	}

	return Request{
		ProtocolID: protocolID,
		CallID:     callID,
		MethodID:   methodID,
		Parameters: body,
	}, nil
}

// Response is an encoded RMC reply: either return values on success or
// a packed error code on failure (spec §4.4 "Response header"). Exactly
// one of ReturnValues or Error is meaningful, gated by Success.
type Response struct {
	ProtocolID   uint16
	CallID       uint32
	MethodID     uint32
	Success      bool
	ReturnValues []byte
	Error        ErrorCode
}

// Encode serializes the response, including its leading payload length.
func (r Response) Encode() []byte {
	var body []byte
	if r.Success {
		body = codec.PutUint8(body, 1)
	} else {
		body = codec.PutUint8(body, 0)
	}
	body = codec.PutUint16(body, r.ProtocolID)
	body = codec.PutUint32(body, r.CallID)
	body = codec.PutUint32(body, r.MethodID)
	if r.Success {
		body = append(body, r.ReturnValues...)
	} else {
		body = codec.PutUint32(body, uint32(r.Error))
	}

	out := codec.PutUint32(nil, uint32(len(body)))
	return append(out, body...)
}

// DecodeResponse parses a response header (used by tests simulating the
// client side of a call).
func DecodeResponse(buf []byte) (Response, error) {
	length, rest, err := codec.GetUint32(buf)
	if err != nil {
		return Response{}, fmt.Errorf("%w: payload length: %v", ErrTruncated, err)
	}
	if uint64(len(rest)) < uint64(length) {
		return Response{}, fmt.Errorf("%w: declared length %d exceeds remaining %d bytes", ErrTruncated, length, len(rest))
	}
	body := rest[:length]

	discriminator, body, err := codec.GetUint8(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: result discriminator: %v", ErrTruncated, err)
	}
	protocolID, body, err := codec.GetUint16(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: protocol id: %v", ErrTruncated, err)
	}
	callID, body, err := codec.GetUint32(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: call id: %v", ErrTruncated, err)
	}
	methodID, body, err := codec.GetUint32(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: method id: %v", ErrTruncated, err)
	}

	resp := Response{ProtocolID: protocolID, CallID: callID, MethodID: methodID, Success: discriminator != 0}
	if resp.Success {
		resp.ReturnValues = body
		return resp, nil
	}
	code, _, err := codec.GetUint32(body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: error code: %v", ErrTruncated, err)
	}
	resp.Error = ErrorCode(code)
	return resp, nil
}
