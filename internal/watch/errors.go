package watch

import "errors"

// ErrUnknownTask is returned when the hub does not recognise a tracked task id.
var ErrUnknownTask = errors.New("no such task id")
