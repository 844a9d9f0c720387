package item

import "time"

// Status is the lifecycle state of an item.
type Status string

const (
	StatusVoting   Status = "voting"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusVoting, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Item is a content-addressed unit of text awaiting or past a decision.
type Item struct {
	Hash       string     `json:"hash"`
	Payload    string     `json:"payload"`
	Source     string     `json:"source,omitempty"`
	Mime       string     `json:"mime"`
	Bytes      int64      `json:"bytes"`
	RawPath    string     `json:"raw_path,omitempty"`
	Status     Status     `json:"status"`
	IngestedAt time.Time  `json:"ingested_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

// Ref is a lightweight representation for listing.
type Ref struct {
	Hash       string    `json:"hash"`
	Source     string    `json:"source,omitempty"`
	Status     Status    `json:"status"`
	Bytes      int64     `json:"bytes"`
	IngestedAt time.Time `json:"ingested_at"`
}

// StatusCounts holds the number of items in each status.
type StatusCounts struct {
	Voting   int `json:"voting"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Total returns the number of items across all statuses.
func (c StatusCounts) Total() int {
	return c.Voting + c.Approved + c.Rejected
}
