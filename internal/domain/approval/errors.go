package approval

import "errors"

// ErrInvalidAction indicates a moderation action other than approve or reject.
var ErrInvalidAction = errors.New("invalid moderation action")
