package pathguard

import "errors"

var (
	// ErrOutOfBounds is returned when a resolved path would leave the workspace root
	ErrOutOfBounds = errors.New("path is outside the workspace root")
)
