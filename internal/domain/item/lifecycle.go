package item

import "github.com/looplab/fsm"

// Lifecycle events.
const (
	EventApprove = "approve"
	EventReject  = "reject"
)

func newLifecycle(from Status) *fsm.FSM {
	return fsm.NewFSM(
		string(from),
		fsm.Events{
			{Name: EventApprove, Src: []string{string(StatusVoting)}, Dst: string(StatusApproved)},
			{Name: EventReject, Src: []string{string(StatusVoting)}, Dst: string(StatusRejected)},
		},
		fsm.Callbacks{},
	)
}

// EventFor returns the lifecycle event that moves an item into status to.
func EventFor(to Status) (string, bool) {
	switch to {
	case StatusApproved:
		return EventApprove, true
	case StatusRejected:
		return EventReject, true
	}
	return "", false
}

// ValidateTransition validates a requested status change.
func ValidateTransition(from, to Status) error {
	event, ok := EventFor(to)
	if !ok {
		return ErrInvalidTransition
	}
	if !newLifecycle(from).Can(event) {
		return ErrInvalidTransition
	}
	return nil
}
