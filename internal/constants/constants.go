package constants

import "time"

const (
	// ContextKeyUserID is the key under which the authenticated user id is
	// stored in both the session and the gin context.
	ContextKeyUserID = "user_id"
	// ContextKeyRequestID holds the per-request correlation id.
	ContextKeyRequestID = "request_id"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "catena_session"
	// HeaderRequestID carries the correlation id in and out of the API.
	HeaderRequestID = "X-Request-ID"
)

const (
	MinPasswordLength   = 6
	MaxTaskNameLength   = 255
	MaxAIGeneratedTasks = 20
	ResetTokenBytes     = 20
)

const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Schedule window defaults applied when from/to are omitted.
const (
	DefaultWindowFrom = "00:00:00"
	DefaultWindowTo   = "23:59:59"
)

// BroadcastTopic is the shared topic every task event is published to.
const BroadcastTopic = "users"

// Event names published on BroadcastTopic.
const (
	EventTaskCreated     = "task_created"
	EventTaskUpdated     = "task_updated"
	EventTaskDeleted     = "task_deleted"
	EventScheduleUpdated = "schedule_updated"
)

// SessionMaxAge is how long a login session cookie stays valid.
const SessionMaxAge = 7 * 24 * time.Hour
