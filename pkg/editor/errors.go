package editor

import "errors"

var (
	// ErrPreconditionFailed is returned when a batch cannot be applied as
	// requested: missing file without create permission, a line number past
	// end of file, or a malformed operation list. The session remains
	// usable after this error.
	ErrPreconditionFailed = errors.New("edit precondition failed")
)
