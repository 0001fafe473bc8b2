package logging

// Log levels
const (
	DEBUG       = "DEBUG" // Diagnostic information, only with -v or LOG_LEVEL=debug
	INFO        = "INFO"  // Run progress (stage start/stop, per-member summaries)
	WARN        = "WARN"  // Recoverable issues (failed fetch for one item, malformed roster entry)
	ERROR_LEVEL = "ERROR" // Operation-fatal errors - captured by Sentry
	FATAL       = "FATAL" // Run-fatal errors, exits with code 1
)

const (
	Error = "error"
	Fatal = "fatal"
	Warn  = "warn"
	Info  = "info"
	Debug = "debug"
)

// Standard logging field keys - use constants to ensure consistency
const (
	// Core fields
	ACTION   = "action"
	COUNT    = "count"
	NAME     = "name"
	PATH     = "path"
	PHASE    = "phase"
	REASON   = "reason"
	STATUS   = "status"
	TOTAL    = "total"
	ERROR    = "error"
	DURATION = "duration"

	// Infrastructure fields
	HOST    = "host"
	PORT    = "port"
	SERVICE = "service"
	SOURCE  = "source"
	RUN_ID  = "run_id"

	// Network/HTTP fields
	ENDPOINT          = "endpoint"
	ERROR_STATUS      = "error_status"
	STATUS_CODE       = "status_code"
	BUNGIE_ERROR_CODE = "bungie_error_code"
	ATTEMPT           = "attempt"
	ATTEMPTS          = "attempts"
	CONCURRENCY       = "concurrency"

	// Clan/Entity fields
	ACTIVITIES      = "activities"
	CHARACTER_ID    = "character_id"
	CHARACTERS      = "characters"
	CLAN_NAME       = "clan_name"
	GROUP_ID        = "group_id"
	INSTANCE_ID     = "instance_id"
	MEMBERSHIP_ID   = "membership_id"
	MEMBERSHIP_TYPE = "membership_type"
	DISPLAY_NAME    = "display_name"
	PLAYERS         = "players"
	VISIBILITY      = "visibility"
	PAGE            = "page"
	ENTRY_INDEX     = "entry_index"

	// Window fields
	SEARCH_DEPTH  = "search_depth"
	RELEVANT_DAYS = "relevant_days"
	DROPPED       = "dropped"
	PROCESSED     = "processed"
	PERCENT       = "percent"
	ELAPSED       = "elapsed"
)
