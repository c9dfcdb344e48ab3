package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRoot_Existing(t *testing.T) {
	dir := t.TempDir()

	root, err := EnsureRoot(dir, false)

	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestEnsureRoot_MissingWithoutCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := EnsureRoot(dir, false)

	assert.ErrorIs(t, err, ErrRootMissing)
}

func TestEnsureRoot_MissingWithCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "created", "nested")

	root, err := EnsureRoot(dir, true)

	require.NoError(t, err)
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureRoot_FileIsFatal(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := EnsureRoot(file, true)

	assert.ErrorIs(t, err, ErrRootNotDirectory)
}

func TestEnsureRoot_Empty(t *testing.T) {
	_, err := EnsureRoot("", false)

	assert.Error(t, err)
}

func TestWatcher_ReportsWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	root := t.TempDir()
	target := filepath.Join(root, "file.txt")

	var (
		mu      sync.Mutex
		changes []ChangeType
		paths   []string
	)
	watcher, err := NewWatcher(WatcherConfig{
		Root:        root,
		SettleDelay: 20 * time.Millisecond,
		OnChange: func(path string, change ChangeType) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, change)
			paths = append(paths, path)
		},
	})
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer func() { _ = watcher.Stop() }()

	require.NoError(t, os.WriteFile(target, []byte("hello\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, target)
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{Root: t.TempDir()})

	assert.Error(t, err)
}

func TestNewWatcher_RequiresRoot(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{OnChange: func(string, ChangeType) {}})

	assert.Error(t, err)
}
