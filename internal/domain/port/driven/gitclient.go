// Package driven defines the driven-side port interfaces and their error
// contracts. Adapters implement these; application services depend on them.
package driven

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

// Sentinel errors returned by GitClient implementations.
var (
	// ErrRepoNotFound indicates the repository does not exist or is not
	// accessible with the configured credentials.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrAuth indicates the upstream rejected our credentials. This is fatal
	// for the whole process until reconfigured, never retried per-repository.
	ErrAuth = errors.New("upstream credentials rejected")
)

// RateLimitError indicates the upstream throttled us. RetryAfter is the
// duration to wait before the next attempt; zero means the upstream gave no
// hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// GitClient is the port wrapping the upstream source-hosting API. Errors are
// one of ErrRepoNotFound, ErrAuth, *RateLimitError, or anything else, which
// callers treat as transient.
type GitClient interface {
	// ResolveDefaultBranch returns the repository's default branch name.
	ResolveDefaultBranch(ctx context.Context, repo string) (string, error)

	// ListCommitsSince returns the commits on branch strictly newer than
	// cursor, newest-first, plus the current branch tip. With a nil cursor
	// only the tip is fetched (baseline initialization; full history is never
	// retrieved). An empty delta is not an error.
	ListCommitsSince(ctx context.Context, repo, branch string, cursor *model.Cursor) (model.CommitDelta, error)
}
