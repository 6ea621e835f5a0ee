package db

import (
	"context"
	"fmt"

	"github.com/rdv2go/rdv2go/internal/model"
)

// SendInvitation queues an invitation from sender to receiver (spec §3
// "Invite").
func (d *DB) SendInvitation(ctx context.Context, sender, receiver uint32) (*model.Invite, error) {
	var inv model.Invite
	err := d.pool.QueryRow(ctx,
		`INSERT INTO invites (sender, receiver) VALUES ($1, $2) RETURNING id, sender, receiver, created_at`,
		sender, receiver,
	).Scan(&inv.ID, &inv.Sender, &inv.Receiver, &inv.QueuedAt)
	if err != nil {
		return nil, fmt.Errorf("sending invitation from %d to %d: %w", sender, receiver, err)
	}
	return &inv, nil
}

// GetInvitationsReceived drains every pending invitation addressed to
// receiver, deleting them as they're read. A rendezvous client is
// expected to see each invite exactly once.
func (d *DB) GetInvitationsReceived(ctx context.Context, receiver uint32) ([]model.Invite, error) {
	rows, err := d.pool.Query(ctx,
		`DELETE FROM invites WHERE receiver = $1 RETURNING id, sender, receiver, created_at`, receiver,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching invitations for %d: %w", receiver, err)
	}
	defer rows.Close()

	var out []model.Invite
	for rows.Next() {
		var inv model.Invite
		if err := rows.Scan(&inv.ID, &inv.Sender, &inv.Receiver, &inv.QueuedAt); err != nil {
			return nil, fmt.Errorf("scanning invite row: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
