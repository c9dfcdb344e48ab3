// Package editor performs multi-operation line-level edits on files inside a
// sandboxed session by translating each operation into a stream-editor
// invocation. Every generated command goes through the session's full policy;
// the editor holds no privileged bypass.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/harun/shellbox/pkg/pathguard"
	"github.com/harun/shellbox/pkg/shell"
)

// Editor applies edit batches through one session. The in-place flag of the
// host's sed is probed on first use and cached for the session's lifetime.
type Editor struct {
	sess *shell.Session

	probeOnce sync.Once
	inPlace   string
}

// New creates an editor bound to sess.
func New(sess *shell.Session) *Editor {
	return &Editor{sess: sess}
}

// Result describes a successfully applied batch.
type Result struct {
	// Path is the resolved absolute path of the edited file
	Path string

	// Applied is the number of operations executed
	Applied int

	// Created reports whether the file was created by this batch
	Created bool

	// Diff is a patch-format preview of the change
	Diff string
}

// Apply validates batch and executes its operations in shift-insensitive
// order: descending by line, with insert-at-end first and
// insert-at-beginning last. Operations already applied before a mid-batch
// failure are not rolled back; the returned error names the offending
// operation.
func (e *Editor) Apply(batch Batch) (*Result, error) {
	if batch.Path == "" {
		return nil, fmt.Errorf("%w: target path is required", ErrPreconditionFailed)
	}
	if len(batch.Ops) == 0 {
		return nil, fmt.Errorf("%w: empty operation list", ErrPreconditionFailed)
	}
	for _, op := range batch.Ops {
		if err := op.validate(); err != nil {
			return nil, err
		}
	}

	path, err := pathguard.Resolve(e.sess.WorkspaceRoot(), e.sess.CurrentDir(), batch.Path)
	if err != nil {
		return nil, err
	}

	// The whole batch is one logical unit on the session.
	if err := e.sess.Acquire(); err != nil {
		return nil, err
	}
	defer func() { _ = e.sess.Release() }()

	created, err := e.ensureFile(path, batch)
	if err != nil {
		return nil, err
	}

	lineCount := 0
	if !created {
		lineCount, err = e.countLines(path)
		if err != nil {
			return nil, err
		}
	}
	for _, op := range batch.Ops {
		if (op.Kind == KindModify || op.Kind == KindDelete) && op.Line > lineCount {
			return nil, fmt.Errorf("%w: %s targets line %d but %s has %d lines",
				ErrPreconditionFailed, op.Kind, op.Line, path, lineCount)
		}
	}

	before := e.readFile(path)

	inPlace, err := e.inPlaceFlag()
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, op := range orderForExecution(batch.Ops) {
		command := sedCommand(op, path, inPlace, lineCount)
		if _, err := e.sess.Run(command, false); err != nil {
			return nil, fmt.Errorf("%s on %s (after %d of %d operations): %w",
				op, path, applied, len(batch.Ops), err)
		}
		applied++
		lineCount += op.lineDelta()
		if lineCount < 0 {
			lineCount = 0
		}
	}

	after := e.readFile(path)
	dmp := diffmatchpatch.New()
	patch := dmp.PatchToText(dmp.PatchMake(before, after))

	log.Debug().
		Str("path", path).
		Int("operations", applied).
		Bool("created", created).
		Msg("Edit batch applied")

	return &Result{Path: path, Applied: applied, Created: created, Diff: patch}, nil
}

// ensureFile enforces the existence preconditions and creates the file when
// the batch is insert-only and allowed to create it. The parent directory is
// created recursively, confined by the path guard.
func (e *Editor) ensureFile(path string, batch Batch) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	for _, op := range batch.Ops {
		if op.Kind != KindInsert {
			return false, fmt.Errorf("%w: cannot %s missing file %s", ErrPreconditionFailed, op.Kind, path)
		}
	}
	if !batch.AllowCreate {
		return false, fmt.Errorf("%w: %s does not exist and creation is not allowed", ErrPreconditionFailed, path)
	}

	parent := filepath.Dir(path)
	if _, err := pathguard.Resolve(e.sess.WorkspaceRoot(), e.sess.CurrentDir(), parent); err != nil {
		return false, err
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return false, fmt.Errorf("create parent %s: %w", parent, err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	return true, nil
}

// countLines queries the file's line count through the session.
func (e *Editor) countLines(path string) (int, error) {
	lines, err := e.sess.Run("wc -l < "+shellQuote(path), false)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(lines[len(lines)-1]))
	if err != nil {
		return 0, fmt.Errorf("parse line count %q: %w", lines[len(lines)-1], err)
	}
	return count, nil
}

// inPlaceFlag probes the OS family for sed's in-place syntax: BSD sed wants
// an explicit (empty) backup suffix argument, GNU sed takes the bare flag.
func (e *Editor) inPlaceFlag() (string, error) {
	e.probeOnce.Do(func() {
		e.inPlace = "-i"
		lines, err := e.sess.Run("uname -s", false)
		if err != nil || len(lines) == 0 {
			log.Warn().Err(err).Msg("uname probe failed, assuming GNU sed")
			return
		}
		if strings.EqualFold(lines[0], "darwin") || strings.Contains(strings.ToLower(lines[0]), "bsd") {
			e.inPlace = "-i ''"
		}
	})
	return e.inPlace, nil
}

func (e *Editor) readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
