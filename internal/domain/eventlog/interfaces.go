package eventlog

import "context"

// Repository provides persistence for stream entries.
type Repository interface {
	// Append stores the entry and sets its Offset.
	Append(ctx context.Context, entry *Entry) error
	Read(ctx context.Context, stream Stream, after int64, limit int) ([]Entry, error)
	Head(ctx context.Context, stream Stream) (int64, error)
}

// Publisher receives notifications for appended entries.
type Publisher interface {
	Publish(n Notification)
}
