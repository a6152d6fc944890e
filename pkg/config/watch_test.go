package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// waitForRoots polls the store until its roots match want or the deadline
// passes. Reloads are debounced, so the swap is not immediate.
func waitForRoots(t *testing.T, store *sandbox.Store, want []string) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		roots := store.Current().Roots()
		if len(roots) == len(want) {
			match := true
			for i := range roots {
				if roots[i] != want[i] {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

// ============================================================================
// Config Watch Tests
// ============================================================================

func TestWatchSandbox(t *testing.T) {
	t.Run("ReloadsAllowListOnWrite", func(t *testing.T) {
		path := writeConfig(t, `
sandbox:
  allowed_roots:
    - /tmp
`)

		policy, err := sandbox.NewPolicy([]string{"/tmp"})
		require.NoError(t, err)
		store := sandbox.NewStore(policy)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- WatchSandbox(ctx, path, store) }()

		// Give the watcher a moment to establish before rewriting.
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, os.WriteFile(path, []byte(`
sandbox:
  allowed_roots:
    - /var/tmp
`), 0600))

		assert.True(t, waitForRoots(t, store, []string{"/var/tmp"}), "allow-list was not reloaded")

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop on cancellation")
		}
	})

	t.Run("KeepsPreviousPolicyOnBrokenReload", func(t *testing.T) {
		path := writeConfig(t, `
sandbox:
  allowed_roots:
    - /tmp
`)

		policy, err := sandbox.NewPolicy([]string{"/tmp"})
		require.NoError(t, err)
		store := sandbox.NewStore(policy)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- WatchSandbox(ctx, path, store) }()

		time.Sleep(100 * time.Millisecond)

		// A relative root fails validation; the active policy must survive.
		require.NoError(t, os.WriteFile(path, []byte(`
sandbox:
  allowed_roots:
    - not/absolute
`), 0600))

		time.Sleep(500 * time.Millisecond)
		assert.Equal(t, []string{"/tmp"}, store.Current().Roots())

		cancel()
		<-done
	})
}
