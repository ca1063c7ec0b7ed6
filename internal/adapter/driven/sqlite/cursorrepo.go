package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CursorStore = (*CursorRepo)(nil)

// CursorRepo is the SQLite implementation of the CursorStore port. It owns
// the repositories table (metadata + cursor columns) and the commit_log
// audit table.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new CursorRepo backed by the given DB.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// GetRepo retrieves a repository record. Returns nil, nil if the repository
// has never been seen.
func (r *CursorRepo) GetRepo(ctx context.Context, repo string) (*model.Repository, error) {
	const query = `SELECT repo, default_branch, consecutive_failures, state, last_checked_at, added_at
		FROM repositories WHERE repo = ?`

	var rec model.Repository
	var state string
	var lastChecked sql.NullString
	var addedAt string

	err := r.db.Reader.QueryRowContext(ctx, query, repo).Scan(
		&rec.FullName, &rec.DefaultBranch, &rec.ConsecutiveFailures, &state, &lastChecked, &addedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", repo, err)
	}

	rec.State = model.RepoState(state)

	if lastChecked.Valid {
		rec.LastCheckedAt, err = parseTime(lastChecked.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_checked_at: %w", err)
		}
	}

	rec.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	return &rec, nil
}

// UpsertRepo creates or updates the repository metadata. The cursor columns
// (last_commit_sha, last_commit_at) are deliberately never written here:
// CompareAndSet is the sole cursor write path.
func (r *CursorRepo) UpsertRepo(ctx context.Context, rec model.Repository) error {
	const query = `INSERT INTO repositories (repo, default_branch, consecutive_failures, state, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (repo) DO UPDATE SET
			default_branch = excluded.default_branch,
			consecutive_failures = excluded.consecutive_failures,
			state = excluded.state`

	addedAt := rec.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	state := rec.State
	if state == "" {
		state = model.RepoStateActive
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		rec.FullName, rec.DefaultBranch, rec.ConsecutiveFailures, string(state), addedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert repository %s: %w", rec.FullName, err)
	}

	return nil
}

// GetCursor returns the stored cursor, or nil, nil when no baseline has been
// established for the repository yet.
func (r *CursorRepo) GetCursor(ctx context.Context, repo string) (*model.Cursor, error) {
	const query = `SELECT last_commit_sha, last_commit_at FROM repositories WHERE repo = ?`

	var sha string
	var committedAt sql.NullString

	err := r.db.Reader.QueryRowContext(ctx, query, repo).Scan(&sha, &committedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor %s: %w", repo, err)
	}

	if sha == "" {
		return nil, nil
	}

	cursor := model.Cursor{SHA: sha}
	if committedAt.Valid {
		cursor.CommittedAt, err = parseTime(committedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_commit_at: %w", err)
		}
	}

	return &cursor, nil
}

// CompareAndSet advances the cursor only if the stored SHA still equals
// expectedSHA. A repository row must already exist (UpsertRepo runs before
// any check cycle); a missing row reports false like any other lost race.
func (r *CursorRepo) CompareAndSet(ctx context.Context, repo, expectedSHA string, next model.Cursor) (bool, error) {
	const query = `UPDATE repositories SET last_commit_sha = ?, last_commit_at = ?
		WHERE repo = ? AND last_commit_sha = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		next.SHA, next.CommittedAt.UTC(), repo, expectedSHA,
	)
	if err != nil {
		return false, fmt.Errorf("compare-and-set cursor %s: %w", repo, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// SetState transitions the repository's reachability state.
func (r *CursorRepo) SetState(ctx context.Context, repo string, state model.RepoState) error {
	const query = `UPDATE repositories SET state = ? WHERE repo = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, string(state), repo); err != nil {
		return fmt.Errorf("set state %s for %s: %w", state, repo, err)
	}

	return nil
}

// RecordCheck stamps the last-check time and stores the consecutive failure
// count.
func (r *CursorRepo) RecordCheck(ctx context.Context, repo string, failures int) error {
	const query = `UPDATE repositories SET last_checked_at = ?, consecutive_failures = ? WHERE repo = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, time.Now().UTC(), failures, repo); err != nil {
		return fmt.Errorf("record check for %s: %w", repo, err)
	}

	return nil
}

// LogCommit appends a detected commit to the audit log. Returns false when
// the commit was already logged for this repository.
func (r *CursorRepo) LogCommit(ctx context.Context, repo string, c model.CommitRef) (bool, error) {
	const query = `INSERT OR IGNORE INTO commit_log
		(repo, sha, message, author_name, author_email, committed_at, url, added, removed, modified, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.Writer.ExecContext(ctx, query,
		repo, c.SHA, c.Message, c.AuthorName, c.AuthorEmail, c.CommittedAt.UTC(),
		c.URL, c.Added, c.Removed, c.Modified, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("log commit %s for %s: %w", c.SHA, repo, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
