package workspace

import "errors"

var (
	// ErrRootMissing is returned when the workspace root does not exist and creation is disabled
	ErrRootMissing = errors.New("workspace root does not exist")

	// ErrRootNotDirectory is returned when the workspace root exists but is not a directory
	ErrRootNotDirectory = errors.New("workspace root is not a directory")
)
