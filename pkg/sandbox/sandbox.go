// Package sandbox decides whether a file system path may be read.
//
// Membership under an allow-listed root directory is the entire trust
// model of the bridge: there is no user or credential concept. The policy
// canonicalizes paths (resolving symlinks and ".." segments) before the
// containment check, because a raw string-prefix check alone is defeated
// by traversal segments that are legal strings but resolve outside the
// root.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/filebridge-dev/filebridge/internal/logger"
)

// Denial explains why a path was rejected. The wire protocol only carries
// PERMISSION_DENIED; the reason is for local logs and the check-path CLI.
type Denial string

// Denial reasons.
const (
	DenyNotAbsolute  Denial = "path is not absolute"
	DenyOutsideRoots Denial = "path is not under any allowed root"
	DenyUnresolvable Denial = "path cannot be canonicalized"
	DenyEscapesRoot  Denial = "canonical path escapes the allowed root"

	// Allowed is the zero Denial returned when a path passes the policy.
	Allowed Denial = ""
)

// Policy holds the set of allow-listed root directories.
//
// A Policy is immutable after construction; Store swaps the active policy
// atomically so config reloads never expose a half-built root set.
type Policy struct {
	roots []string
}

// NewPolicy builds a policy from the configured roots.
//
// Each root must be an absolute path. Roots are cleaned but not
// canonicalized here: a root that does not exist yet (say, a mount that
// appears later) stays in the list and simply never matches until the
// paths under it resolve.
func NewPolicy(roots []string) (*Policy, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("sandbox: at least one allowed root is required")
	}

	cleaned := make([]string, 0, len(roots))
	for i, root := range roots {
		if !filepath.IsAbs(root) {
			return nil, fmt.Errorf("sandbox: root[%d] %q is not absolute", i, root)
		}
		cleaned = append(cleaned, filepath.Clean(root))
	}

	return &Policy{roots: cleaned}, nil
}

// Roots returns a copy of the configured roots.
func (p *Policy) Roots() []string {
	out := make([]string, len(p.roots))
	copy(out, p.roots)
	return out
}

// Allowed reports whether path may be read under this policy.
func (p *Policy) Allowed(path string) bool {
	_, denial := p.Check(path)
	return denial == Allowed
}

// Check evaluates path against the policy.
//
// Evaluation order:
//  1. Relative paths are rejected outright.
//  2. If the raw string is not under any root prefix, reject without
//     attempting canonicalization.
//  3. Canonicalize; failure (missing file, dangling symlink, non-directory
//     component) rejects.
//  4. The canonical form must still fall under the matched set of roots,
//     otherwise the path was a traversal or symlink escape.
//
// On success the returned string is the canonical path, which is what the
// executor should open: it cannot be re-routed between check and open by
// the path segments the check already resolved.
func (p *Policy) Check(path string) (string, Denial) {
	if !filepath.IsAbs(path) {
		return "", DenyNotAbsolute
	}

	clean := filepath.Clean(path)
	if !p.underAnyRoot(clean) {
		return "", DenyOutsideRoots
	}

	canonical, err := filepath.EvalSymlinks(clean)
	if err != nil {
		logger.Debug("Path canonicalization failed", "path", path, "error", err)
		return "", DenyUnresolvable
	}

	if !p.underAnyRoot(canonical) {
		logger.Warn("Canonical path escapes allowed roots", "path", path, "canonical", canonical)
		return "", DenyEscapesRoot
	}

	return canonical, Allowed
}

// underAnyRoot reports whether path falls under one of the roots with a
// path-boundary-aware prefix check ("/tmpfoo" is not under "/tmp").
func (p *Policy) underAnyRoot(path string) bool {
	for _, root := range p.roots {
		if path == root {
			return true
		}
		prefix := root
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// DefaultRoots returns the roots used when none are configured: the
// current user's home directory plus the system temp roots.
func DefaultRoots() []string {
	roots := []string{"/tmp", "/var/tmp"}
	if home, err := os.UserHomeDir(); err == nil && filepath.IsAbs(home) {
		roots = append([]string{home}, roots...)
	}
	return roots
}

// Store holds the active policy and supports atomic replacement on
// config reload. The zero value is unusable; use NewStore.
type Store struct {
	mu     sync.RWMutex
	policy *Policy
}

// NewStore creates a store with an initial policy.
func NewStore(policy *Policy) *Store {
	return &Store{policy: policy}
}

// Current returns the active policy.
func (s *Store) Current() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Replace swaps in a new policy.
func (s *Store) Replace(policy *Policy) {
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
}
