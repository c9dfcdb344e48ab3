package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrPolicyDenied is returned when a command fails a policy step
	ErrPolicyDenied = errors.New("command denied by policy")
)

// Denial reports which policy step rejected a command. It carries the
// literal command so callers can audit-log the rejection.
type Denial struct {
	Step    Step
	Command string
	Reason  string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%v at step %s: %s (command: %q)", ErrPolicyDenied, d.Step, d.Reason, d.Command)
}

// Unwrap makes errors.Is(err, ErrPolicyDenied) work on denials.
func (d *Denial) Unwrap() error {
	return ErrPolicyDenied
}
