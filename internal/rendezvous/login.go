package rendezvous

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/constants"
	rdvcrypto "github.com/rdv2go/rdv2go/internal/crypto"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
	"github.com/rdv2go/rdv2go/internal/ticket"
)

// Login issues an authentication ticket for a principal (spec §4.5
// "Login"). Parameters are (username String, password String); on
// success the return values are (sealed_ticket Buffer, encrypted_
// response Buffer, secure_station_url StationURL).
func (h *Handlers) Login(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	username, rest, err := codec.GetString(params)
	if err != nil {
		return nil, fmt.Errorf("decoding login username: %w", err)
	}
	password, _, err := codec.GetString(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding login password: %w", err)
	}

	account, err := h.Store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up account %q: %w", username, err)
	}
	if account == nil {
		return nil, rmc.InvalidUsername
	}
	if account.Disabled {
		return nil, rmc.AccountDisabled
	}

	if account.LegacyPassword != "" {
		if password != account.LegacyPassword {
			return nil, rmc.InvalidPassword
		}
	} else {
		ok, err := rdvcrypto.VerifyPassword(account.PasswordHash, password)
		if err != nil {
			return nil, fmt.Errorf("verifying password for %q: %w", username, err)
		}
		if !ok {
			return nil, rmc.InvalidPassword
		}
	}

	var sessionKey [16]byte
	if _, err := rand.Read(sessionKey[:]); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}

	now := time.Now()
	sealed := h.Tickets.Seal(ticket.Ticket{
		PrincipalID: account.ID,
		SessionKey:  sessionKey,
		ValidUntil:  now.Add(loginTicketLifetime),
	})

	var responsePayload []byte
	responsePayload = append(responsePayload, sessionKey[:]...)
	responsePayload = codec.PutStationURL(responsePayload, h.SecureStationURL)

	longTermKey := rdvcrypto.DeriveLongTermKey(password, h.passwordIterations())
	cipher, err := rdvcrypto.NewStreamCipher(longTermKey)
	if err != nil {
		return nil, fmt.Errorf("creating response cipher: %w", err)
	}
	if err := cipher.XORKeyStream(responsePayload); err != nil {
		return nil, fmt.Errorf("encrypting login response: %w", err)
	}

	if err := h.Store.UpdateLastLogin(ctx, account.ID, now); err != nil {
		h.logger().Warn("updating last login", "principal_id", account.ID, "error", err)
	}

	var out []byte
	out = codec.PutBuffer(out, sealed)
	out = codec.PutBuffer(out, responsePayload)
	out = codec.PutStationURL(out, h.SecureStationURL)
	return out, nil
}

// loginTicketLifetime is the duration a freshly issued ticket remains
// valid (spec §4.5 Login: "valid_until = now + 24 h").
const loginTicketLifetime = constants.TicketLifetime

func (h *Handlers) passwordIterations() int {
	if h.PasswordIterations > 0 {
		return h.PasswordIterations
	}
	return constants.DefaultPasswordIterations
}
