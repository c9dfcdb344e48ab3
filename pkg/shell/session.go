// Package shell owns one long-lived shell subprocess confined to a workspace
// root. Every command issued through a Session is re-validated by the
// session's policy, framed with a sentinel marker on the merged output
// stream, and serialized so the shell's internal state (working directory,
// variables) is never mutated concurrently.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/harun/shellbox/pkg/pathguard"
	"github.com/harun/shellbox/pkg/policy"
	"github.com/harun/shellbox/pkg/workspace"
)

const (
	// DefaultShell is the POSIX shell spawned when none is configured
	DefaultShell = "/bin/sh"

	// DefaultCloseTimeout bounds the graceful wait in Close before escalating
	// to a forced kill
	DefaultCloseTimeout = 5 * time.Second
)

// Recorder receives audit events for every command decision made by a
// session. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordCommand(sessionID, command, status, detail string)
}

// Config configures a Session. The zero value is not usable: WorkspaceRoot
// is required.
type Config struct {
	// WorkspaceRoot is the directory tree the session is confined to
	WorkspaceRoot string

	// CreateWorkspace creates a missing root instead of failing startup
	CreateWorkspace bool

	// Shell is the shell binary to spawn (default /bin/sh)
	Shell string

	// AllowList restricts commands to those containing a listed token;
	// empty means allow-all-except-denied
	AllowList []string

	// DenyList extends the default deny-list
	DenyList []string

	// DisableScripts denies interpreter and direct script invocations
	DisableScripts bool

	// CloseTimeout bounds the graceful shutdown wait
	CloseTimeout time.Duration

	// Audit optionally records every command decision
	Audit Recorder
}

// Session is one persistent shell subprocess plus its security policy and
// current-directory state. All command issuance is serialized internally;
// the Acquire/Release pair additionally lets callers group several commands
// into one logical unit.
type Session struct {
	id           string
	root         string
	policy       *policy.Policy
	closeTimeout time.Duration
	audit        Recorder

	doneMarker string
	dirMarker  string

	// sem is the advisory single-slot acquisition callers use to group
	// batches of commands.
	sem chan struct{}

	// ioMu serializes command submission and output framing. It is held for
	// the full duration of one command, including a hung one.
	ioMu sync.Mutex

	// stateMu guards the lifecycle fields and cwd. It is never held while
	// blocking on subprocess I/O, which is what lets Close unblock a hung
	// Run by killing the process.
	stateMu sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  *bufio.Reader
	cwd     string
	closed  bool

	waitCh chan struct{}
}

// NewSession establishes the workspace root, spawns the shell subprocess and
// probes its working directory. The subprocess is started in argv form, never
// through another shell, so the spawn itself is not an injection surface.
func NewSession(cfg Config) (*Session, error) {
	root, err := workspace.EnsureRoot(cfg.WorkspaceRoot, cfg.CreateWorkspace)
	if err != nil {
		return nil, err
	}

	shellProg := cfg.Shell
	if shellProg == "" {
		shellProg = DefaultShell
	}
	closeTimeout := cfg.CloseTimeout
	if closeTimeout == 0 {
		closeTimeout = DefaultCloseTimeout
	}

	pol := policy.New(root)
	pol.AllowList = cfg.AllowList
	pol.DenyList = append(pol.DenyList, cfg.DenyList...)
	pol.DisableScripts = cfg.DisableScripts

	cmd := exec.Command(shellProg)
	cmd.Dir = root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}

	// Output and error streams are merged into one pipe so sentinel framing
	// sees everything the shell emits.
	outRead, outWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("open output pipe: %w", err)
	}
	cmd.Stdout = outWrite
	cmd.Stderr = outWrite

	if err := cmd.Start(); err != nil {
		_ = outRead.Close()
		_ = outWrite.Close()
		return nil, fmt.Errorf("spawn shell %s: %w", shellProg, err)
	}
	// The child holds its own copy of the write end.
	_ = outWrite.Close()

	suffix, err := gonanoid.New()
	if err != nil {
		suffix = uuid.NewString()
	}

	s := &Session{
		id:           uuid.NewString(),
		root:         root,
		policy:       pol,
		closeTimeout: closeTimeout,
		audit:        cfg.Audit,
		doneMarker:   fmt.Sprintf("__SHELLBOX_DONE_%d_%s__", cmd.Process.Pid, suffix),
		dirMarker:    fmt.Sprintf("__SHELLBOX_DIR_%d_%s__", cmd.Process.Pid, suffix),
		sem:          make(chan struct{}, 1),
		cmd:          cmd,
		stdin:        stdin,
		output:       bufio.NewReader(outRead),
		waitCh:       make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()
		_ = outRead.Close()
		close(s.waitCh)
	}()

	s.ioMu.Lock()
	err = s.probeDir()
	s.ioMu.Unlock()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initial directory probe: %w", err)
	}

	log.Info().
		Str("session_id", s.id).
		Str("root", root).
		Str("shell", shellProg).
		Msg("Session opened")

	return s, nil
}

// ID returns the session's opaque identity.
func (s *Session) ID() string { return s.id }

// WorkspaceRoot returns the root the session is confined to.
func (s *Session) WorkspaceRoot() string { return s.root }

// CurrentDir returns the session's believed working directory.
func (s *Session) CurrentDir() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cwd
}

// Alive reports whether the shell subprocess is still running.
func (s *Session) Alive() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.aliveLocked()
}

func (s *Session) aliveLocked() bool {
	if s.closed || s.cmd == nil {
		return false
	}
	select {
	case <-s.waitCh:
		return false
	default:
		return true
	}
}

// Acquire takes exclusive use of the session, blocking until it is free. It
// fails without blocking when the subprocess has already exited. Callers
// that need a batch of commands to run without interleaving hold the
// acquisition across the whole batch.
func (s *Session) Acquire() error {
	if !s.Alive() {
		return ErrProcessNotRunning
	}
	s.sem <- struct{}{}
	return nil
}

// Release returns exclusive use of the session. Releasing without a prior
// Acquire is an error.
func (s *Session) Release() error {
	select {
	case <-s.sem:
		return nil
	default:
		return ErrNotAcquired
	}
}

// Run validates command against the policy, executes it in the shell and
// returns its merged output as non-empty lines in receipt order. The
// sentinel marker line is never part of the result. bypassHuman skips the
// allow-list and script gate only; the remaining policy steps always apply.
//
// There is no timeout on an individual Run: a command that never finishes
// blocks the caller until the session is closed from another goroutine.
func (s *Session) Run(command string, bypassHuman bool) ([]string, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	if !s.Alive() {
		return nil, ErrProcessNotRunning
	}

	if err := s.policy.Check(command, s.CurrentDir(), bypassHuman); err != nil {
		s.record(command, "denied", err.Error())
		return nil, err
	}

	if err := s.writeLine(command + " && echo '" + s.doneMarker + "'"); err != nil {
		return nil, err
	}

	lines, err := s.readUntil(s.doneMarker)
	if err != nil {
		s.record(command, "failed", err.Error())
		return nil, err
	}

	// A cd may have moved the shell; resync our belief and re-check the
	// containment invariant in case the shell itself misbehaved. A shell
	// found outside the root is unrecoverable: every later command would run
	// from an unconfined directory, so the session is torn down on the spot.
	if invokesCd(command) {
		if err := s.probeDir(); err != nil {
			s.record(command, "failed", err.Error())
			log.Error().Str("session_id", s.id).Err(err).Msg("Session closed after failed directory resync")
			_ = s.Close()
			return nil, err
		}
	}

	s.record(command, "executed", "")
	return lines, nil
}

// Close shuts the session down: the input stream is closed, the shell is
// asked to terminate, and after the close timeout it is force-killed with
// ErrCloseTimeout raised so the caller knows cleanup was forced. Any
// operation after Close fails with ErrProcessNotRunning.
//
// Close intentionally does not wait for an in-flight Run; killing the
// subprocess is what unblocks it.
func (s *Session) Close() error {
	s.stateMu.Lock()
	if s.closed || s.cmd == nil {
		s.stateMu.Unlock()
		return ErrProcessNotRunning
	}
	cmd := s.cmd
	stdin := s.stdin
	s.cmd = nil
	s.stdin = nil
	s.output = nil
	s.closed = true
	s.stateMu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-s.waitCh:
	case <-time.After(s.closeTimeout):
		_ = cmd.Process.Kill()
		err := fmt.Errorf("%w after %s", ErrCloseTimeout, s.closeTimeout)
		log.Warn().Str("session_id", s.id).Err(err).Msg("Session force-killed")
		return err
	}

	log.Info().Str("session_id", s.id).Msg("Session closed")
	return nil
}

// probeDir asks the shell for its working directory and blocks until the
// directory marker arrives. It fails when the reported directory lies
// outside the workspace root. Caller must hold ioMu.
func (s *Session) probeDir() error {
	if err := s.writeLine("pwd && echo '" + s.dirMarker + "'"); err != nil {
		return err
	}

	lines, err := s.readUntil(s.dirMarker)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("directory probe returned no output")
	}

	dir := lines[len(lines)-1]
	if _, err := pathguard.Resolve(s.root, s.root, dir); err != nil {
		return fmt.Errorf("shell escaped the workspace: %w", err)
	}

	s.stateMu.Lock()
	s.cwd = dir
	s.stateMu.Unlock()
	return nil
}

func (s *Session) writeLine(line string) error {
	s.stateMu.Lock()
	stdin := s.stdin
	s.stateMu.Unlock()
	if stdin == nil {
		return ErrProcessNotRunning
	}
	if _, err := io.WriteString(stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessExited, err)
	}
	return nil
}

// readUntil accumulates non-empty output lines until the marker line is
// observed. The marker itself is discarded. EOF before the marker means the
// subprocess died mid-command.
func (s *Session) readUntil(marker string) ([]string, error) {
	s.stateMu.Lock()
	output := s.output
	s.stateMu.Unlock()
	if output == nil {
		return nil, ErrProcessNotRunning
	}

	var lines []string
	for {
		raw, err := output.ReadString('\n')
		line := strings.TrimRight(raw, "\r\n")
		if line == marker {
			return lines, nil
		}
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			return nil, fmt.Errorf("%w before sentinel %s", ErrProcessExited, marker)
		}
	}
}

// invokesCd reports whether command contains a cd invocation as a shell
// word. Tokenization must see statement separators, not just whitespace, so
// "true;cd .." triggers a resync the same as "cd ..". A command that cannot
// be tokenized is assumed to move the shell.
func invokesCd(command string) bool {
	words, err := policy.SplitWords(command)
	if err != nil {
		return true
	}
	for _, word := range words {
		if word == "cd" {
			return true
		}
	}
	return false
}

func (s *Session) record(command, status, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.RecordCommand(s.id, command, status, detail)
}
