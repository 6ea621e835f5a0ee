package rendezvous

import (
	"context"
	"fmt"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

// SendInvitation queues an invitation from the caller to a receiver
// principal (spec §4.5 "Invites"). Parameters: (receiver_id u32).
func (h *Handlers) SendInvitation(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	receiver, _, err := codec.GetUint32(params)
	if err != nil {
		return nil, fmt.Errorf("decoding invitation receiver: %w", err)
	}

	inv, err := h.Store.SendInvitation(ctx, rec.PrincipalID, receiver)
	if err != nil {
		return nil, fmt.Errorf("sending invitation from %d to %d: %w", rec.PrincipalID, receiver, err)
	}
	return codec.PutUint64(nil, inv.ID), nil
}

// GetInvitationsReceived pops every pending invite addressed to the
// caller — take semantics, the rows are deleted as part of the read
// (spec §4.5 "Invites").
func (h *Handlers) GetInvitationsReceived(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	invites, err := h.Store.GetInvitationsReceived(ctx, rec.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("fetching invitations for %d: %w", rec.PrincipalID, err)
	}

	out := codec.PutListLen(nil, len(invites))
	for _, inv := range invites {
		out = codec.PutUint64(out, inv.ID)
		out = codec.PutUint32(out, inv.Sender)
		out = codec.PutDateTime(out, dateTimeOf(inv.QueuedAt))
	}
	return out, nil
}
