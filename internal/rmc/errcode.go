package rmc

import (
	"fmt"

	"github.com/rdv2go/rdv2go/internal/constants"
)

// ErrorCode is the packed 32-bit wire error code: category in the high
// 16 bits, specific code in the low 16 bits (spec §4.4, enumerated in
// full in §7).
type ErrorCode uint32

// NewErrorCode packs a category and a specific code into wire form.
func NewErrorCode(category constants.ErrorCategory, code uint16) ErrorCode {
	return ErrorCode(uint32(category)<<16 | uint32(code))
}

// Category extracts the high-16-bit category.
func (e ErrorCode) Category() constants.ErrorCategory {
	return constants.ErrorCategory(e >> 16)
}

// Code extracts the low-16-bit specific code.
func (e ErrorCode) Code() uint16 {
	return uint16(e)
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("rmc error %#08x (category %d, code %d)", uint32(e), e.Category(), e.Code())
}

// Core category codes (spec §7 "Core").
const (
	coreUnknown uint16 = iota
	coreNotImplemented
	coreInvalidPointer
	coreAccessDenied
	coreInvalidArgument
	coreTimeout
	coreBufferOverflow
)

var (
	Unknown         = NewErrorCode(constants.CategoryCore, coreUnknown)
	NotImplemented  = NewErrorCode(constants.CategoryCore, coreNotImplemented)
	InvalidPointer  = NewErrorCode(constants.CategoryCore, coreInvalidPointer)
	AccessDenied    = NewErrorCode(constants.CategoryCore, coreAccessDenied)
	InvalidArgument = NewErrorCode(constants.CategoryCore, coreInvalidArgument)
	CoreTimeout     = NewErrorCode(constants.CategoryCore, coreTimeout)
	BufferOverflow  = NewErrorCode(constants.CategoryCore, coreBufferOverflow)
)

// Transport category codes (spec §7 "Transport").
const (
	transportConnectionFailure uint16 = iota
	transportInvalidURL
	transportIOError
	transportTimeout
	transportConnectionReset
	transportDecompressionFailure
	transportDataRemaining
	transportInvalidStation
	transportPacketBufferFull
)

var (
	TransportConnectionFailure = NewErrorCode(constants.CategoryTransport, transportConnectionFailure)
	InvalidURL                 = NewErrorCode(constants.CategoryTransport, transportInvalidURL)
	IOError                    = NewErrorCode(constants.CategoryTransport, transportIOError)
	TransportTimeout           = NewErrorCode(constants.CategoryTransport, transportTimeout)
	ConnectionReset            = NewErrorCode(constants.CategoryTransport, transportConnectionReset)
	DecompressionFailure       = NewErrorCode(constants.CategoryTransport, transportDecompressionFailure)
	DataRemaining              = NewErrorCode(constants.CategoryTransport, transportDataRemaining)
	InvalidStation             = NewErrorCode(constants.CategoryTransport, transportInvalidStation)
	PacketBufferFull           = NewErrorCode(constants.CategoryTransport, transportPacketBufferFull)
)

// RendezVous category codes (spec §7 "RendezVous").
const (
	rendezVousConnectionFailure uint16 = iota
	rendezVousNotAuthenticated
	rendezVousInvalidUsername
	rendezVousInvalidPassword
	rendezVousUsernameAlreadyExists
	rendezVousAccountDisabled
	rendezVousInvalidPID
	rendezVousInvalidGID
	rendezVousDuplicateEntry
	rendezVousSessionFull
	rendezVousSessionClosed
	rendezVousNotParticipatedGathering
	rendezVousUserIsOffline
)

var (
	RendezVousConnectionFailure = NewErrorCode(constants.CategoryRendezVous, rendezVousConnectionFailure)
	NotAuthenticated            = NewErrorCode(constants.CategoryRendezVous, rendezVousNotAuthenticated)
	InvalidUsername             = NewErrorCode(constants.CategoryRendezVous, rendezVousInvalidUsername)
	InvalidPassword             = NewErrorCode(constants.CategoryRendezVous, rendezVousInvalidPassword)
	UsernameAlreadyExists       = NewErrorCode(constants.CategoryRendezVous, rendezVousUsernameAlreadyExists)
	AccountDisabled             = NewErrorCode(constants.CategoryRendezVous, rendezVousAccountDisabled)
	InvalidPID                  = NewErrorCode(constants.CategoryRendezVous, rendezVousInvalidPID)
	InvalidGID                  = NewErrorCode(constants.CategoryRendezVous, rendezVousInvalidGID)
	DuplicateEntry              = NewErrorCode(constants.CategoryRendezVous, rendezVousDuplicateEntry)
	SessionFull                 = NewErrorCode(constants.CategoryRendezVous, rendezVousSessionFull)
	SessionClosed               = NewErrorCode(constants.CategoryRendezVous, rendezVousSessionClosed)
	NotParticipatedGathering    = NewErrorCode(constants.CategoryRendezVous, rendezVousNotParticipatedGathering)
	UserIsOffline               = NewErrorCode(constants.CategoryRendezVous, rendezVousUserIsOffline)
)

// Authentication category codes (spec §7 "Authentication").
const (
	authNASAuthenticateError uint16 = iota
	authTokenParseError
	authTokenExpired
	authValidationFailed
	authInvalidParam
)

var (
	NASAuthenticateError = NewErrorCode(constants.CategoryAuthentication, authNASAuthenticateError)
	TokenParseError      = NewErrorCode(constants.CategoryAuthentication, authTokenParseError)
	TokenExpired         = NewErrorCode(constants.CategoryAuthentication, authTokenExpired)
	ValidationFailed     = NewErrorCode(constants.CategoryAuthentication, authValidationFailed)
	InvalidParam         = NewErrorCode(constants.CategoryAuthentication, authInvalidParam)
)

// DataStore category codes (spec §7 "DataStore").
const (
	dataStoreUnknown uint16 = iota
	dataStoreInvalidArgument
	dataStorePermissionDenied
	dataStoreNotFound
)

var (
	DataStoreUnknown         = NewErrorCode(constants.CategoryDataStore, dataStoreUnknown)
	DataStoreInvalidArgument = NewErrorCode(constants.CategoryDataStore, dataStoreInvalidArgument)
	PermissionDenied         = NewErrorCode(constants.CategoryDataStore, dataStorePermissionDenied)
	NotFound                 = NewErrorCode(constants.CategoryDataStore, dataStoreNotFound)
)
