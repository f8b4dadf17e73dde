package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeEmptyPlayerID      = "EMPTY_PLAYER_ID"
	CodeEmptyClanID        = "EMPTY_CLAN_ID"
	CodeEmptyTechID        = "EMPTY_TECH_ID"
	CodeEmptyVoteID        = "EMPTY_VOTE_ID"
	CodeEmptyMissileID     = "EMPTY_MISSILE_ID"
	CodeEmptyBatteryID     = "EMPTY_BATTERY_ID"
	CodeInvalidVoteType    = "INVALID_VOTE_TYPE"
	CodeInvalidVotePayload = "INVALID_VOTE_PAYLOAD"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeInvalidFilter      = "INVALID_FILTER"
	CodeUnknownTech        = "UNKNOWN_TECH"
	CodeUnknownWarhead     = "UNKNOWN_WARHEAD"
	CodeUnknownBattery     = "UNKNOWN_BATTERY"

	CodeAlreadyResearching = "ALREADY_RESEARCHING"
	CodePrerequisitesUnmet = "PREREQUISITES_UNMET"
	CodeAlreadyCompleted   = "ALREADY_COMPLETED"
	CodeInsufficientRP     = "INSUFFICIENT_RP"

	CodeNotAMember             = "NOT_A_MEMBER"
	CodeDuplicateProposal      = "DUPLICATE_PROPOSAL"
	CodeVoteNotActive          = "VOTE_NOT_ACTIVE"
	CodeAlreadyVoted           = "ALREADY_VOTED"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSION"

	CodeWrongStatus           = "WRONG_STATUS"
	CodeAuthorizationRequired = "AUTHORIZATION_REQUIRED"
	CodeMissileNotInFlight    = "MISSILE_NOT_IN_FLIGHT"
	CodeInsufficientResources = "INSUFFICIENT_RESOURCES"
	CodeTechLocked            = "TECH_LOCKED"
	CodeNotOwner              = "NOT_OWNER"

	CodeNotFound = "NOT_FOUND"
	CodeConflict = "CONFLICT"
	CodeInternal = "INTERNAL"
)

func init() {
	RegisterCatalog("en-US", NewCatalog("en-US", map[Code]string{
		// Validation errors
		CodeEmptyPlayerID:      "Player ID is required",
		CodeEmptyClanID:        "Clan ID is required",
		CodeEmptyTechID:        "Technology ID is required",
		CodeEmptyVoteID:        "Vote ID is required",
		CodeEmptyMissileID:     "Missile ID is required",
		CodeEmptyBatteryID:     "Battery ID is required",
		CodeInvalidVoteType:    "Invalid vote type specified",
		CodeInvalidVotePayload: "Vote payload does not match the vote type",
		CodeInvalidAmount:      "Amount must be greater than zero",
		CodeInvalidFilter:      "Filter expression is invalid",
		CodeUnknownTech:        "Unknown technology: {{.TechID}}",
		CodeUnknownWarhead:     "Unknown warhead type: {{.WarheadType}}",
		CodeUnknownBattery:     "Unknown battery type: {{.BatteryType}}",

		// Research errors
		CodeAlreadyResearching: "Research is already in progress",
		CodePrerequisitesUnmet: "Prerequisites for {{.TechID}} are not met",
		CodeAlreadyCompleted:   "Technology {{.TechID}} is already researched",
		CodeInsufficientRP:     "Insufficient research points: have {{.Have}}, need {{.Need}}",

		// Vote errors
		CodeNotAMember:             "You are not a member of this clan",
		CodeDuplicateProposal:      "An active proposal of this kind already exists",
		CodeVoteNotActive:          "This vote has already been decided",
		CodeAlreadyVoted:           "You have already cast a ballot on this vote",
		CodeInsufficientPermission: "Only clan leadership can do that",

		// Arsenal errors
		CodeWrongStatus:           "Operation not allowed in status {{.Status}}",
		CodeAuthorizationRequired: "Launching {{.WarheadType}} requires clan authorization",
		CodeMissileNotInFlight:    "The missile is not in flight",
		CodeInsufficientResources: "Insufficient resources: have {{.Have}}, need {{.Need}}",
		CodeTechLocked:            "Requires technology {{.TechID}}",
		CodeNotOwner:              "You do not own this asset",

		// Storage errors
		CodeNotFound: "The requested resource was not found",
		CodeConflict: "The record changed concurrently, please retry",
		CodeInternal: "An internal error occurred",
	}))
}
