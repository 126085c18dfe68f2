package types

import "time"

// LogFileRef identifies one decom log file in the bucket. Immutable once
// constructed; all fields are parsed from the object key.
type LogFileRef struct {
	BucketPath string    // full object key, e.g. "DEFAULT/decom_logs/tlm/INST/20260115/...bin.gz"
	Direction  Direction // TLM or CMD, from the path segment below decom_logs/
	Target     string    // target name from the filename
	Packet     string    // packet name from the filename; may be AllPacketsName
	Timestamp  time.Time // file start time from the filename
}

// Compressed reports whether the object is gzip-compressed.
func (f LogFileRef) Compressed() bool {
	n := len(f.BucketPath)
	return n >= 3 && f.BucketPath[n-3:] == ".gz"
}

// DecodedPacket is one decoded record from a decom log file, produced by the
// binary decoder. Fields maps field name to a scalar, array, or state value.
type DecodedPacket struct {
	Target   string
	Packet   string
	TimeNsec int64
	Fields   map[string]any
}

// Checkpoint records migration progress so a restarted run resumes without
// reprocessing files. Persisted as JSON under a scope-namespaced key; the
// in-memory counters are authoritative and the stored record is a mirror.
type Checkpoint struct {
	RunID           string    `json:"runId"`
	LastFile        string    `json:"lastFile"`
	LastFileTime    time.Time `json:"lastFileTime"`
	FilesProcessed  int64     `json:"filesProcessed"`
	PacketsIngested int64     `json:"packetsIngested"`
	ErrorsCount     int64     `json:"errorsCount"`
	StartedAt       time.Time `json:"startedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Snapshot is a consistent view of the live system definitions, taken once
// per run before processing begins.
type Snapshot struct {
	Targets    map[string]struct{}
	TLMPackets map[string]map[string]struct{} // target -> packet names
	CMDPackets map[string]map[string]struct{} // target -> packet names
}

// Alert is a notification dispatched to configured sinks.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Scope     string     `json:"scope"`
	RunID     string     `json:"runId,omitempty"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// StatusReport is the operator-visible snapshot served by the status API.
type StatusReport struct {
	State           MigrationState `json:"state"`
	Detail          string         `json:"detail,omitempty"` // e.g. "12/340" while migrating
	Scope           string         `json:"scope"`
	RunID           string         `json:"runId"`
	FilesProcessed  int64          `json:"filesProcessed"`
	PacketsIngested int64          `json:"packetsIngested"`
	ErrorsCount     int64          `json:"errorsCount"`
	StartedAt       time.Time      `json:"startedAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt,omitempty"`
	LastError       string         `json:"lastError,omitempty"`
}
