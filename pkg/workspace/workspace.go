// Package workspace manages the directory tree a sandboxed session is
// confined to: establishing the root at startup and optionally watching it
// for files changed outside the session.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// EnsureRoot validates the workspace root and returns it as an absolute
// path. A missing root is created when create is true and is a fatal error
// otherwise. A root that exists but is not a directory is always fatal.
func EnsureRoot(path string, create bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("workspace root is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrRootNotDirectory, abs)
		}
		return abs, nil
	case os.IsNotExist(err):
		if !create {
			return "", fmt.Errorf("%w: %s", ErrRootMissing, abs)
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return "", fmt.Errorf("create workspace root %s: %w", abs, err)
		}
		log.Info().Str("root", abs).Msg("Created workspace root")
		return abs, nil
	default:
		return "", fmt.Errorf("stat workspace root %s: %w", abs, err)
	}
}
