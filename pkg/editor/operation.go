package editor

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind is the kind of line-level mutation an operation performs.
type Kind string

const (
	KindInsert Kind = "insert"
	KindModify Kind = "modify"
	KindDelete Kind = "delete"
)

// Insert line sentinels.
const (
	// LineBeginning inserts content as the new first line
	LineBeginning = 0

	// LineEnd appends content as the new last line
	LineEnd = -1
)

// Operation is one line-level mutation. Line is 1-based for modify and
// delete; for insert it may also be LineBeginning or LineEnd. Content is
// ignored for delete.
type Operation struct {
	Line    int    `json:"line"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content,omitempty"`
}

func (op Operation) String() string {
	return fmt.Sprintf("%s line %d", op.Kind, op.Line)
}

// validate checks a single operation's shape.
func (op Operation) validate() error {
	switch op.Kind {
	case KindInsert:
		if op.Line < LineEnd {
			return fmt.Errorf("%w: insert line %d (want >= -1)", ErrPreconditionFailed, op.Line)
		}
	case KindModify, KindDelete:
		if op.Line < 1 {
			return fmt.Errorf("%w: %s line %d (want >= 1)", ErrPreconditionFailed, op.Kind, op.Line)
		}
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrPreconditionFailed, op.Kind)
	}
	return nil
}

// lineDelta is how many lines the file grows or shrinks by after op applies.
func (op Operation) lineDelta() int {
	switch op.Kind {
	case KindInsert:
		return 1 + strings.Count(op.Content, "\n")
	case KindModify:
		return strings.Count(op.Content, "\n")
	case KindDelete:
		return -1
	}
	return 0
}

// sortKey orders operations so that edits near the end of the file execute
// before edits near the start, keeping every later operation's line number
// valid. Insert-at-end is the maximal key (a true append must never be
// outrun by a shift) and insert-at-beginning the minimal one.
func (op Operation) sortKey() int {
	if op.Kind == KindInsert && op.Line == LineEnd {
		return math.MaxInt
	}
	return op.Line
}

// orderForExecution returns the operations sorted by descending key. The
// sort is stable so same-line operations keep their input order.
func orderForExecution(ops []Operation) []Operation {
	ordered := make([]Operation, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].sortKey() > ordered[j].sortKey()
	})
	return ordered
}

// Batch is an ordered list of operations applied to one file.
type Batch struct {
	// Path is the target file, absolute or relative to the session's
	// current directory
	Path string `json:"path"`

	// AllowCreate permits creating a missing file for insert-only batches
	AllowCreate bool `json:"allow_create"`

	// Ops are the requested mutations; execution order is chosen by the
	// editor, not by this list's order
	Ops []Operation `json:"ops"`
}
