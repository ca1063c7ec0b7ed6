package driven

import (
	"context"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

// CursorStore is the port for durable per-repository state: the last-seen
// cursor plus repository metadata (default branch, reachability, failure
// counts). Store-level I/O errors propagate to the caller and fail only the
// affected repository's check cycle.
type CursorStore interface {
	// GetRepo returns the repository record, or nil, nil when the repository
	// has never been seen.
	GetRepo(ctx context.Context, repo string) (*model.Repository, error)

	// UpsertRepo creates or updates the repository record. The cursor columns
	// are not touched; CompareAndSet is the sole cursor write path.
	UpsertRepo(ctx context.Context, r model.Repository) error

	// GetCursor returns the stored cursor, or nil, nil when no baseline has
	// been established yet.
	GetCursor(ctx context.Context, repo string) (*model.Cursor, error)

	// CompareAndSet advances the cursor only if the stored SHA still equals
	// expectedSHA (empty string for "no cursor yet"). Returns false when the
	// stored value moved underneath the caller.
	CompareAndSet(ctx context.Context, repo, expectedSHA string, next model.Cursor) (bool, error)

	// SetState transitions the repository's reachability state.
	SetState(ctx context.Context, repo string, state model.RepoState) error

	// RecordCheck stamps the last-check time and stores the consecutive
	// failure count for the repository.
	RecordCheck(ctx context.Context, repo string, failures int) error

	// LogCommit appends a detected commit to the audit log. Returns false
	// without error when the commit was already logged for this repository;
	// callers use this as a second dedup guard against re-notification.
	LogCommit(ctx context.Context, repo string, c model.CommitRef) (bool, error)
}
