package rendezvous

import (
	"github.com/rdv2go/rdv2go/internal/constants"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

// Method ids within each protocol. Like the RMC error code values in
// package rmc, the wire format doesn't fix these numbers — every
// deployment's autogenerated method table assigns its own — so this is
// this core's self-consistent registry, not a reproduction of any
// specific client's numbering.
const methodLogin uint32 = 1

const (
	methodCreateSession uint32 = iota + 1
	methodUpdateSession
	methodDeleteSession
	methodAddParticipants
	methodRemoveParticipants
	methodGetParticipants
	methodSearchSessions
	methodSearchSessionsWithParticipants
	methodRegisterUrls
	methodSendInvitation
	methodGetInvitationsReceived
)

// RegisterOn wires every handler onto reg, including stub protocols for
// the out-of-scope friends/accounts/news/stats surface (spec §4.5).
func (h *Handlers) RegisterOn(reg *rmc.Registry) {
	auth := rmc.NewProtocol(uint16(constants.ProtocolAuthentication))
	auth.Handle(methodLogin, h.Login)
	reg.Register(auth)

	rdv := rmc.NewProtocol(uint16(constants.ProtocolRendezVous))
	rdv.Handle(methodCreateSession, h.CreateSession)
	rdv.Handle(methodUpdateSession, h.UpdateSession)
	rdv.Handle(methodDeleteSession, h.DeleteSession)
	rdv.Handle(methodAddParticipants, h.AddParticipants)
	rdv.Handle(methodRemoveParticipants, h.RemoveParticipants)
	rdv.Handle(methodGetParticipants, h.GetParticipants)
	rdv.Handle(methodSearchSessions, h.SearchSessions)
	rdv.Handle(methodSearchSessionsWithParticipants, h.SearchSessionsWithParticipants)
	rdv.Handle(methodRegisterUrls, h.RegisterUrls)
	rdv.Handle(methodSendInvitation, h.SendInvitation)
	rdv.Handle(methodGetInvitationsReceived, h.GetInvitationsReceived)
	reg.Register(rdv)

	reg.Register(rmc.NewProtocol(uint16(constants.ProtocolFriends)).
		Handle(1, h.stub("Friends.method")))
	reg.Register(rmc.NewProtocol(uint16(constants.ProtocolAccountManagement)).
		Handle(1, h.stub("AccountManagement.method")))
	reg.Register(rmc.NewProtocol(uint16(constants.ProtocolNews)).
		Handle(1, h.stub("News.method")))
	reg.Register(rmc.NewProtocol(uint16(constants.ProtocolStats)).
		Handle(1, h.stub("Stats.method")))
}
