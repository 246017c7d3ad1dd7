package builder

import "errors"

// Sentinel errors for build submission.
var (
	ErrUnknownTarget = errors.New("unknown build target")
	ErrUnknownTag    = errors.New("unknown destination tag")
	ErrTagLocked     = errors.New("destination tag is locked")
	ErrNotConfirmed  = errors.New("grant not confirmed")
)
