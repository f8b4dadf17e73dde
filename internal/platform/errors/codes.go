// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input validation errors
	CodeEmptyPlayerID      Code = "EMPTY_PLAYER_ID"
	CodeEmptyClanID        Code = "EMPTY_CLAN_ID"
	CodeEmptyTechID        Code = "EMPTY_TECH_ID"
	CodeEmptyVoteID        Code = "EMPTY_VOTE_ID"
	CodeEmptyMissileID     Code = "EMPTY_MISSILE_ID"
	CodeEmptyBatteryID     Code = "EMPTY_BATTERY_ID"
	CodeInvalidVoteType    Code = "INVALID_VOTE_TYPE"
	CodeInvalidVotePayload Code = "INVALID_VOTE_PAYLOAD"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidFilter      Code = "INVALID_FILTER"
	CodeUnknownTech        Code = "UNKNOWN_TECH"
	CodeUnknownWarhead     Code = "UNKNOWN_WARHEAD"
	CodeUnknownBattery     Code = "UNKNOWN_BATTERY"

	// Research errors
	CodeAlreadyResearching Code = "ALREADY_RESEARCHING"
	CodePrerequisitesUnmet Code = "PREREQUISITES_UNMET"
	CodeAlreadyCompleted   Code = "ALREADY_COMPLETED"
	CodeInsufficientRP     Code = "INSUFFICIENT_RP"

	// Vote errors
	CodeNotAMember             Code = "NOT_A_MEMBER"
	CodeDuplicateProposal      Code = "DUPLICATE_PROPOSAL"
	CodeVoteNotActive          Code = "VOTE_NOT_ACTIVE"
	CodeAlreadyVoted           Code = "ALREADY_VOTED"
	CodeInsufficientPermission Code = "INSUFFICIENT_PERMISSION"

	// Arsenal errors
	CodeWrongStatus           Code = "WRONG_STATUS"
	CodeAuthorizationRequired Code = "AUTHORIZATION_REQUIRED"
	CodeMissileNotInFlight    Code = "MISSILE_NOT_IN_FLIGHT"
	CodeInsufficientResources Code = "INSUFFICIENT_RESOURCES"
	CodeTechLocked            Code = "TECH_LOCKED"
	CodeNotOwner              Code = "NOT_OWNER"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeEmptyPlayerID,
		CodeEmptyClanID,
		CodeEmptyTechID,
		CodeEmptyVoteID,
		CodeEmptyMissileID,
		CodeEmptyBatteryID,
		CodeInvalidVoteType,
		CodeInvalidVotePayload,
		CodeInvalidAmount,
		CodeInvalidFilter,
		CodeUnknownTech,
		CodeUnknownWarhead,
		CodeUnknownBattery:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeAlreadyResearching,
		CodePrerequisitesUnmet,
		CodeAlreadyCompleted,
		CodeInsufficientRP,
		CodeDuplicateProposal,
		CodeVoteNotActive,
		CodeAlreadyVoted,
		CodeWrongStatus,
		CodeAuthorizationRequired,
		CodeMissileNotInFlight,
		CodeInsufficientResources,
		CodeTechLocked:
		return codes.FailedPrecondition

	// PermissionDenied - actor lacks the role or ownership
	case CodeNotAMember,
		CodeInsufficientPermission,
		CodeNotOwner:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Aborted - concurrent update lost after retries
	case CodeConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
