package eventlog

import (
	"encoding/json"
	"time"
)

// Stream names an append-only log.
type Stream string

const (
	StreamIngest           Stream = "ingest"
	StreamApproved         Stream = "approved"
	StreamRejected         Stream = "rejected"
	StreamTrainingProgress Stream = "training-progress"
)

// Streams lists every known stream.
var Streams = []Stream{StreamIngest, StreamApproved, StreamRejected, StreamTrainingProgress}

// Valid reports whether s is a known stream.
func (s Stream) Valid() bool {
	for _, known := range Streams {
		if s == known {
			return true
		}
	}
	return false
}

// Event types written to the streams.
const (
	TypeIngested = "ingested"
	TypeApproved = "approved"
	TypeRejected = "rejected"
	TypeProgress = "progress"
)

// Entry is one record of a stream. Offsets are unique and strictly
// increasing in append order.
type Entry struct {
	Offset    int64           `json:"offset"`
	Stream    Stream          `json:"stream"`
	Type      string          `json:"type"`
	ItemHash  string          `json:"item_hash,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification is the best-effort fan-out message for an appended entry.
type Notification struct {
	ID       string          `json:"id"`
	Stream   Stream          `json:"stream"`
	Type     string          `json:"event_type"`
	ItemHash string          `json:"item_hash,omitempty"`
	Offset   int64           `json:"offset"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// DecisionPayload is the snapshot stored with an approved or rejected entry.
type DecisionPayload struct {
	Score   int            `json:"score"`
	Quality int            `json:"quality"`
	Voters  int            `json:"voters"`
	Counts  map[string]int `json:"counts"`
	Reason  string         `json:"reason"`
	Actor   string         `json:"actor,omitempty"`
}

// IngestPayload is stored with an ingest entry.
type IngestPayload struct {
	Source string `json:"source,omitempty"`
	Mime   string `json:"mime"`
	Bytes  int64  `json:"bytes"`
}

// ProgressPayload is stored with a training-progress entry.
type ProgressPayload struct {
	RunKey    string `json:"run_key"`
	Batch     int    `json:"batch"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Filtered  int    `json:"filtered"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Offset    int64  `json:"offset"`
	Artifact  string `json:"artifact,omitempty"`
}
