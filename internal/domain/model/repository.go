// Package model contains the pure domain types shared across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RepoState describes whether a repository is still being scheduled for checks.
type RepoState string

const (
	// RepoStateActive means the repository is checked on every poll tick.
	RepoStateActive RepoState = "active"
	// RepoStateUnreachable means consecutive not-found failures exceeded the
	// threshold; scheduled checks are suppressed until a manual check or re-add.
	RepoStateUnreachable RepoState = "unreachable"
)

// Repository represents a GitHub repository tracked by commitwatch.
// FullName is the normalized lowercase "owner/name" identity used as the
// storage key everywhere.
type Repository struct {
	FullName            string
	DefaultBranch       string // Resolved lazily on first check; cached.
	State               RepoState
	ConsecutiveFailures int
	LastCheckedAt       time.Time // Zero until the first completed check.
	AddedAt             time.Time
}

// URL returns the browsable repository URL.
func (r Repository) URL() string {
	return "https://github.com/" + r.FullName
}

// NormalizeRepoName validates and canonicalizes a user-supplied repository
// reference into the lowercase "owner/name" form. It tolerates a full
// https://github.com/owner/name URL and a trailing ".git" suffix.
func NormalizeRepoName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "http://github.com/")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid repository %q: expected owner/name", raw)
	}

	return strings.ToLower(parts[0] + "/" + parts[1]), nil
}
