package bungie

// Bungie PlatformErrorCodes we act on
const (
	Success                      = 1
	UnhandledException           = 3    // Transient error - retryable
	InvalidParameters            = 18   // Invalid input parameters, e.g. wrong membership type
	GroupNotFound                = 686  // Clan not found
	DestinyAccountNotFound       = 1601 // Account not found
	PGCRNotFound                 = 1653 // Standard 404 error for PGCRs
	DestinyPrivacyRestriction    = 1665 // Privated resource
	DestinyThrottledByGameServer = 1672 // Throttled by game server (expected throttling)
)

// transientErrorCodes are retried by the client like network failures
var transientErrorCodes = map[int]bool{
	UnhandledException:           true,
	DestinyThrottledByGameServer: true,
}

// GroupType of a clan
const GroupTypeClan = 1

// DestinyComponentType of the profile component, which lists character ids
const ComponentProfiles = 100

// ComponentPrivacySetting reported alongside each profile component
const (
	ComponentPrivacyPublic  = 1
	ComponentPrivacyPrivate = 2
)

// ModeNone is the DestinyActivityModeType matching every mode
const ModeNone = 0

// MaxActivityHistoryPageSize is the largest count the activity history endpoint accepts
const MaxActivityHistoryPageSize = 250

// Bungie membership type constants
// Reference: BungieMembershipType enum
const (
	MembershipTypeXbox   = 1
	MembershipTypePSN    = 2
	MembershipTypeSteam  = 3
	MembershipTypeStadia = 5
	MembershipTypeEpic   = 6
)

// AllViableMembershipTypes lists platform types we try when resolving a profile
var AllViableMembershipTypes = []int{
	MembershipTypeXbox,
	MembershipTypePSN,
	MembershipTypeSteam,
	MembershipTypeStadia,
	MembershipTypeEpic,
}
