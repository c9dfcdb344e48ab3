// Package policy evaluates raw shell commands against an ordered allow/deny
// rule set before they are handed to a sandboxed session. The five steps run
// in a fixed sequence and each one short-circuits on failure:
//
//  1. allow-list match (skipped when the caller bypasses human policy)
//  2. script-execution gate (skipped on bypass or when scripts are enabled)
//  3. escape/nesting detection (never skipped)
//  4. deny-list substring match (never skipped)
//  5. path-argument containment (never skipped)
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/shellbox/pkg/pathguard"
)

// Step identifies which evaluation step rejected a command.
type Step string

const (
	StepAllowList   Step = "allow_list"
	StepScriptGate  Step = "script_gate"
	StepEscape      Step = "escape_detection"
	StepDenyList    Step = "deny_list"
	StepContainment Step = "path_containment"
)

// Policy holds the rule set applied to every command of one session.
type Policy struct {
	// AllowList is an ordered set of substrings. Empty means
	// allow-all-except-denied.
	AllowList []string

	// DenyList is an ordered set of substrings, always enforced.
	DenyList []string

	// DisableScripts denies interpreter and direct script invocations.
	DisableScripts bool

	// Root is the absolute workspace root commands are confined to.
	Root string
}

// New returns a policy confined to root with the default deny-list.
func New(root string) *Policy {
	return &Policy{
		DenyList: DefaultDenyList(),
		Root:     root,
	}
}

// DefaultDenyList covers privilege escalation, destructive recursive deletes
// on system roots, and package-manager invocations.
func DefaultDenyList() []string {
	return []string{
		"sudo",
		"su -",
		"doas",
		"rm -rf /",
		"rm -fr /",
		"rm -rf ~",
		"mkfs",
		"dd if=",
		"chmod 777 /",
		"chown -r",
		"shutdown",
		"reboot",
		"apt-get",
		"apt install",
		"yum install",
		"dnf install",
		"pacman -s",
		"brew install",
		"pip install",
		"npm install",
		"gem install",
	}
}

// interpreterTokens are runtime and shell launcher names denied when script
// execution is disabled. Matched against lowercased command text.
var interpreterTokens = []string{
	"python", "python3", "node", "nodejs", "deno", "ruby", "perl", "php", "lua",
	"sh", "bash", "zsh", "ksh", "dash", "fish", "pwsh", "powershell",
}

// scriptExtensions mark a dot-relative invocation as a script launch.
var scriptExtensions = []string{".sh", ".py", ".rb", ".pl", ".js", ".php", ".lua"}

// Check evaluates command against the policy. It returns nil when all five
// steps pass and a *Denial wrapping ErrPolicyDenied otherwise. currentDir is
// the session's believed working directory and seeds the path-containment
// walk; bypassHuman skips the allow-list and script gate only.
func (p *Policy) Check(command, currentDir string, bypassHuman bool) error {
	lowered := strings.ToLower(command)

	// Step 1: allow-list.
	if !bypassHuman && len(p.AllowList) > 0 {
		allowed := false
		for _, token := range p.AllowList {
			if strings.Contains(lowered, strings.ToLower(token)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return p.deny(StepAllowList, command, "no allow-listed token present")
		}
	}

	// Step 2: script-execution gate.
	if !bypassHuman && p.DisableScripts {
		if token, hit := scriptInvocation(lowered); hit {
			return p.deny(StepScriptGate, command, fmt.Sprintf("script execution is disabled (matched %q)", token))
		}
	}

	// Step 3: escape/nesting detection.
	if token, hit := p.laundersDeniedToken(lowered); hit {
		return p.deny(StepEscape, command, fmt.Sprintf("deny-listed token %q in quoted or chained context", token))
	}

	// Step 4: deny-list.
	for _, token := range p.DenyList {
		if strings.Contains(lowered, strings.ToLower(token)) {
			return p.deny(StepDenyList, command, fmt.Sprintf("deny-listed token %q", token))
		}
	}

	// Step 5: path-argument containment.
	if err := p.checkPathArguments(command, currentDir); err != nil {
		return err
	}

	return nil
}

// scriptInvocation reports whether the lowercased command launches an
// interpreter or a script directly. A "./x" token counts only when x carries
// a recognized script extension or is a bare dot-relative execution.
func scriptInvocation(lowered string) (string, bool) {
	for _, token := range interpreterTokens {
		if containsWord(lowered, token) {
			return token, true
		}
	}
	for _, field := range strings.Fields(lowered) {
		if !strings.HasPrefix(field, "./") {
			continue
		}
		ext := filepath.Ext(field)
		for _, scriptExt := range scriptExtensions {
			if ext == scriptExt {
				return field, true
			}
		}
		if ext == "" {
			// Literal dot-relative execution of an extensionless binary.
			return field, true
		}
	}
	return "", false
}

// containsWord reports whether word appears in s delimited by non-word
// characters, so "sh" matches "sh -c" and "/bin/sh" but not "mesh".
func containsWord(s, word string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || isWordBoundary(s[idx-1])
		afterOK := end == len(s) || isWordBoundary(s[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordBoundary(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		return false
	}
	return true
}

// laundersDeniedToken detects deny-listed tokens hidden inside quoted or
// backtick-delimited substrings, and any deny-listed token at all when the
// command chains via a pipe or statement separator. Both are treated as
// laundering attempts regardless of quoting.
func (p *Policy) laundersDeniedToken(lowered string) (string, bool) {
	chained := strings.ContainsAny(lowered, "|;")
	for _, region := range quotedRegions(lowered) {
		for _, token := range p.DenyList {
			if strings.Contains(region, strings.ToLower(token)) {
				return token, true
			}
		}
	}
	if chained {
		for _, token := range p.DenyList {
			if strings.Contains(lowered, strings.ToLower(token)) {
				return token, true
			}
		}
	}
	return "", false
}

// quotedRegions returns the contents of every '...', "..." and `...` span.
// Unterminated quotes yield the region up to end of string; step 5 will deny
// the command for the unbalanced quote anyway.
func quotedRegions(s string) []string {
	var regions []string
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\'' && c != '"' && c != '`' {
			continue
		}
		end := strings.IndexByte(s[i+1:], c)
		if end < 0 {
			regions = append(regions, s[i+1:])
			break
		}
		regions = append(regions, s[i+1:i+1+end])
		i += end + 1
	}
	return regions
}

// checkPathArguments tokenizes the command and verifies every path argument
// stays inside the workspace root. A running base directory starts at
// currentDir and follows each "cd <target>" pair, so later relative
// arguments are judged against the directory the shell would be in. A cd
// with no target (or a tilde target) would drop the shell into $HOME, which
// no guard can resolve, so those are denied outright.
func (p *Policy) checkPathArguments(command, currentDir string) error {
	words, err := SplitWords(command)
	if err != nil {
		return p.deny(StepContainment, command, err.Error())
	}

	base := currentDir
	for i := 0; i < len(words); i++ {
		word := words[i]
		if word == "cd" {
			if i+1 >= len(words) || words[i+1] == Separator {
				return p.deny(StepContainment, command, "cd without a target changes to the home directory")
			}
			target := words[i+1]
			if strings.HasPrefix(target, "~") {
				return p.deny(StepContainment, command, fmt.Sprintf("cd target %q expands outside the workspace", target))
			}
			resolved, err := pathguard.Resolve(p.Root, base, target)
			if err != nil {
				return p.deny(StepContainment, command, fmt.Sprintf("cd target %q: %v", target, err))
			}
			base = resolved
			i++
			continue
		}
		if strings.HasPrefix(word, "-") || !looksLikePath(word) {
			continue
		}
		// Non-cd arguments are judged only when they name something that
		// actually exists on disk.
		if !pathExists(absolutize(base, word)) {
			continue
		}
		if _, err := pathguard.Resolve(p.Root, base, word); err != nil {
			return p.deny(StepContainment, command, fmt.Sprintf("argument %q: %v", word, err))
		}
	}
	return nil
}

func looksLikePath(word string) bool {
	return strings.ContainsRune(word, '/') || word == "." || word == ".."
}

func absolutize(base, word string) string {
	if filepath.IsAbs(word) {
		return filepath.Clean(word)
	}
	return filepath.Clean(filepath.Join(base, word))
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *Policy) deny(step Step, command, reason string) error {
	log.Debug().
		Str("step", string(step)).
		Str("command", command).
		Str("reason", reason).
		Msg("Command denied by policy")

	return &Denial{Step: step, Command: command, Reason: reason}
}
