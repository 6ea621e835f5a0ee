package rmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rdv2go/rdv2go/internal/prudp"
)

// HandlerFunc handles one decoded RMC call over a live connection and
// returns the typed response (spec §4.4 "Dispatch").
type HandlerFunc func(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) (returnValues []byte, err error)

// Protocol is a method_id → HandlerFunc table for one protocol id.
// Slots with no registered handler fall through to UnimplementedMethod
// (spec §9: "The default for an absent slot is 'return
// UnimplementedMethod'").
type Protocol struct {
	ID      uint16
	Methods map[uint32]HandlerFunc
}

// NewProtocol creates an empty method table for protocol id id.
func NewProtocol(id uint16) *Protocol {
	return &Protocol{ID: id, Methods: make(map[uint32]HandlerFunc)}
}

// Handle registers fn as the handler for methodID, returning the
// Protocol for chaining.
func (p *Protocol) Handle(methodID uint32, fn HandlerFunc) *Protocol {
	p.Methods[methodID] = fn
	return p
}

// Registry is the static protocol_id → Protocol dispatch table
// (spec §4.4 "Dispatch", §9 "table-driven dispatcher").
type Registry struct {
	protocols map[uint16]*Protocol
	Logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[uint16]*Protocol)}
}

// Register adds a protocol's method table to the registry.
func (r *Registry) Register(p *Protocol) {
	r.protocols[p.ID] = p
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Dispatch decodes an RMC request from payload, invokes the registered
// handler (or responds UnimplementedMethod if none is registered), and
// returns the encoded response. It satisfies prudp.Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, rec *prudp.ConnectionRecord, payload []byte) ([]byte, error) {
	req, err := DecodeRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding RMC request: %w", err)
	}

	resp := Response{ProtocolID: req.ProtocolID, CallID: req.CallID, MethodID: req.MethodID}

	proto, ok := r.protocols[req.ProtocolID]
	if !ok {
		r.logger().Debug("no handler registered for protocol", "protocol_id", req.ProtocolID)
		resp.Success = false
		resp.Error = NotImplemented
		return resp.Encode(), nil
	}

	handler, ok := proto.Methods[req.MethodID]
	if !ok {
		r.logger().Debug("no handler registered for method", "protocol_id", req.ProtocolID, "method_id", req.MethodID)
		resp.Success = false
		resp.Error = NotImplemented
		return resp.Encode(), nil
	}

	returnValues, err := handler(ctx, rec, req.Parameters)
	if err != nil {
		code, ok := asErrorCode(err)
		if !ok {
			r.logger().Error("handler returned an unpacked error", "protocol_id", req.ProtocolID, "method_id", req.MethodID, "error", err)
			code = Unknown
		}
		resp.Success = false
		resp.Error = code
		return resp.Encode(), nil
	}

	resp.Success = true
	resp.ReturnValues = returnValues
	return resp.Encode(), nil
}

func asErrorCode(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}
