package shell

import "errors"

var (
	// ErrProcessNotRunning is returned when an operation is attempted on a
	// session whose subprocess is absent or already closed
	ErrProcessNotRunning = errors.New("shell process is not running")

	// ErrProcessExited is returned when the subprocess dies before the
	// sentinel line is observed
	ErrProcessExited = errors.New("shell process exited unexpectedly")

	// ErrNotAcquired is returned by Release without a prior Acquire
	ErrNotAcquired = errors.New("session is not acquired")

	// ErrCloseTimeout is returned when graceful shutdown did not complete in
	// time and the subprocess was force-killed
	ErrCloseTimeout = errors.New("session close timed out")
)
