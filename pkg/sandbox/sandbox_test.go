package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalTempDir returns a t.TempDir resolved through EvalSymlinks, so
// containment checks compare canonical forms on platforms where the temp
// root is itself a symlink.
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

// ============================================================================
// Policy Construction Tests
// ============================================================================

func TestNewPolicy(t *testing.T) {
	t.Run("AcceptsAbsoluteRoots", func(t *testing.T) {
		p, err := NewPolicy([]string{"/tmp", "/var/tmp"})
		require.NoError(t, err)

		assert.Equal(t, []string{"/tmp", "/var/tmp"}, p.Roots())
	})

	t.Run("CleansRoots", func(t *testing.T) {
		p, err := NewPolicy([]string{"/tmp/./nested/.."})
		require.NoError(t, err)

		assert.Equal(t, []string{"/tmp"}, p.Roots())
	})

	t.Run("RejectsEmptyRootSet", func(t *testing.T) {
		_, err := NewPolicy(nil)

		require.Error(t, err)
	})

	t.Run("RejectsRelativeRoot", func(t *testing.T) {
		_, err := NewPolicy([]string{"relative/path"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not absolute")
	})

	t.Run("RootsReturnsCopy", func(t *testing.T) {
		p, err := NewPolicy([]string{"/tmp"})
		require.NoError(t, err)

		roots := p.Roots()
		roots[0] = "/mutated"
		assert.Equal(t, []string{"/tmp"}, p.Roots())
	})
}

// ============================================================================
// Path Check Tests
// ============================================================================

func TestPolicyCheck(t *testing.T) {
	t.Run("AllowsFileUnderRoot", func(t *testing.T) {
		root := canonicalTempDir(t)
		path := filepath.Join(root, "sub", "file.txt")
		writeFile(t, path, []byte("data"))

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		canonical, denial := p.Check(path)
		assert.Equal(t, Allowed, denial)
		assert.Equal(t, path, canonical)
		assert.True(t, p.Allowed(path))
	})

	t.Run("AllowsRootItself", func(t *testing.T) {
		root := canonicalTempDir(t)

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		_, denial := p.Check(root)
		assert.Equal(t, Allowed, denial)
	})

	t.Run("RejectsRelativePath", func(t *testing.T) {
		p, err := NewPolicy([]string{"/tmp"})
		require.NoError(t, err)

		_, denial := p.Check("etc/passwd")
		assert.Equal(t, DenyNotAbsolute, denial)
	})

	t.Run("RejectsPathOutsideRoots", func(t *testing.T) {
		root := canonicalTempDir(t)

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		_, denial := p.Check("/etc/passwd")
		assert.Equal(t, DenyOutsideRoots, denial)
	})

	t.Run("RejectsSiblingWithRootPrefix", func(t *testing.T) {
		// "/tmpfoo" shares the string prefix of root "/tmp" but is a
		// different directory.
		root := canonicalTempDir(t)

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		_, denial := p.Check(root + "foo/file.txt")
		assert.Equal(t, DenyOutsideRoots, denial)
	})

	t.Run("RejectsTraversalEscape", func(t *testing.T) {
		root := canonicalTempDir(t)

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		// Clean collapses the traversal before the prefix check, so the
		// escape is caught as an outside path.
		_, denial := p.Check(filepath.Join(root, "..", "..", "etc", "passwd"))
		assert.NotEqual(t, Allowed, denial)
	})

	t.Run("RejectsNonexistentFile", func(t *testing.T) {
		root := canonicalTempDir(t)

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		_, denial := p.Check(filepath.Join(root, "missing.txt"))
		assert.Equal(t, DenyUnresolvable, denial)
	})

	t.Run("RejectsSymlinkEscape", func(t *testing.T) {
		root := canonicalTempDir(t)
		outside := canonicalTempDir(t)
		target := filepath.Join(outside, "secret.txt")
		writeFile(t, target, []byte("secret"))

		link := filepath.Join(root, "innocent.txt")
		require.NoError(t, os.Symlink(target, link))

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		_, denial := p.Check(link)
		assert.Equal(t, DenyEscapesRoot, denial)
	})

	t.Run("AllowsSymlinkWithinRoot", func(t *testing.T) {
		root := canonicalTempDir(t)
		target := filepath.Join(root, "real.txt")
		writeFile(t, target, []byte("data"))

		link := filepath.Join(root, "alias.txt")
		require.NoError(t, os.Symlink(target, link))

		p, err := NewPolicy([]string{root})
		require.NoError(t, err)

		canonical, denial := p.Check(link)
		assert.Equal(t, Allowed, denial)
		assert.Equal(t, target, canonical)
	})

	t.Run("SymlinkIntoOtherAllowedRootIsAllowed", func(t *testing.T) {
		rootA := canonicalTempDir(t)
		rootB := canonicalTempDir(t)
		target := filepath.Join(rootB, "shared.txt")
		writeFile(t, target, []byte("data"))

		link := filepath.Join(rootA, "link.txt")
		require.NoError(t, os.Symlink(target, link))

		p, err := NewPolicy([]string{rootA, rootB})
		require.NoError(t, err)

		canonical, denial := p.Check(link)
		assert.Equal(t, Allowed, denial)
		assert.Equal(t, target, canonical)
	})
}

// ============================================================================
// Default Roots Tests
// ============================================================================

func TestDefaultRoots(t *testing.T) {
	t.Run("IncludesTempRoots", func(t *testing.T) {
		roots := DefaultRoots()

		assert.Contains(t, roots, "/tmp")
		assert.Contains(t, roots, "/var/tmp")
	})

	t.Run("AllAbsolute", func(t *testing.T) {
		for _, root := range DefaultRoots() {
			assert.True(t, filepath.IsAbs(root), "root %q must be absolute", root)
		}
	})
}

// ============================================================================
// Store Tests
// ============================================================================

func TestStore(t *testing.T) {
	t.Run("ReplaceSwapsPolicy", func(t *testing.T) {
		first, err := NewPolicy([]string{"/tmp"})
		require.NoError(t, err)
		second, err := NewPolicy([]string{"/var/tmp"})
		require.NoError(t, err)

		store := NewStore(first)
		assert.Equal(t, []string{"/tmp"}, store.Current().Roots())

		store.Replace(second)
		assert.Equal(t, []string{"/var/tmp"}, store.Current().Roots())
	})
}
