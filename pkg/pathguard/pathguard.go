// Package pathguard provides path resolution confined to a workspace root.
// All functions are pure: they never touch the filesystem beyond symlink
// resolution and never mutate state.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve resolves candidate against base (when candidate is relative) and
// verifies the result stays inside root. Both root and base must be absolute.
// The returned path is absolute and cleaned.
//
// Containment is decided on the canonicalized path, never on the raw string,
// so "root/../escape" style traversal is rejected.
func Resolve(root, base, candidate string) (string, error) {
	if !filepath.IsAbs(root) {
		return "", fmt.Errorf("workspace root must be absolute, got %q", root)
	}

	resolved := candidate
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}
	resolved = filepath.Clean(resolved)

	// Follow symlinks where the path (or a parent of it) already exists, so a
	// link pointing outside the root cannot smuggle a path past the prefix
	// check.
	canonical, err := canonicalize(resolved)
	if err != nil {
		return "", err
	}
	canonicalRoot, err := canonicalize(filepath.Clean(root))
	if err != nil {
		return "", err
	}

	if !Within(canonicalRoot, canonical) {
		return "", fmt.Errorf("%w: %s resolves outside workspace %s", ErrOutOfBounds, candidate, root)
	}
	return resolved, nil
}

// Within reports whether path equals root or is a descendant of it. Both
// arguments must already be absolute and cleaned.
func Within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// canonicalize resolves symlinks for the longest existing prefix of path and
// reattaches the non-existing remainder. A path that does not exist yet is
// still canonicalized through its nearest existing ancestor.
func canonicalize(path string) (string, error) {
	remainder := ""
	current := path
	for {
		real, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(real, remainder)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("canonicalize %s: %w", path, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Hit the filesystem root without finding anything that exists.
			return path, nil
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}
