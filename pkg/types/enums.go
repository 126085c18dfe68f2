// Package types defines the public domain types for the decommigrate backfill service.
package types

// Direction distinguishes telemetry from command decom logs.
type Direction string

// Direction values match the destination table namespace prefixes.
const (
	DirectionTLM Direction = "TLM"
	DirectionCMD Direction = "CMD"
)

// AllPacketsName is the reserved packet name meaning a file carries every
// packet for its target. Such files bypass per-packet validity checks.
const AllPacketsName = "ALL"

// MigrationState represents the lifecycle state of a migration run.
type MigrationState string

// MigrationState values represent the observable states of a migration run.
const (
	StateStarting  MigrationState = "STARTING"
	StateMigrating MigrationState = "MIGRATING"
	StatePaused    MigrationState = "PAUSED"
	StateComplete  MigrationState = "COMPLETE"
	StateError     MigrationState = "ERROR"
)

// ColumnKind classifies a destination column for value casting.
type ColumnKind int

// ColumnKind values enumerate the casting rules applied before a write.
const (
	ColumnPlain       ColumnKind = iota // no coercion
	ColumnJSON                          // arrays and DERIVED items, JSON-serialized into VARCHAR
	ColumnStateString                   // __C state columns, non-strings coerced to string
	ColumnWideInt                       // DECIMAL columns, integers written as strings
	ColumnFloat32                       // FLOAT columns, 32-bit sentinel encoding
	ColumnFloat64                       // DOUBLE columns, 64-bit sentinel encoding
)

// String returns the column kind name used in logs.
func (k ColumnKind) String() string {
	switch k {
	case ColumnPlain:
		return "plain"
	case ColumnJSON:
		return "json"
	case ColumnStateString:
		return "state-string"
	case ColumnWideInt:
		return "wide-int"
	case ColumnFloat32:
		return "float32"
	case ColumnFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertSNS     AlertType = "sns"
)

// AlertLevel indicates alert severity.
type AlertLevel string

// AlertLevel values enumerate alert severities.
const (
	AlertLevelInfo  AlertLevel = "INFO"
	AlertLevelWarn  AlertLevel = "WARN"
	AlertLevelError AlertLevel = "ERROR"
)

// CheckpointProvider selects the checkpoint store backend.
type CheckpointProvider string

// CheckpointProvider values enumerate the supported checkpoint backends.
const (
	CheckpointRedis    CheckpointProvider = "redis"
	CheckpointDynamoDB CheckpointProvider = "dynamodb"
)
