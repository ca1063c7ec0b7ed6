package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SubscriptionStore = (*SubscriptionRepo)(nil)

// SubscriptionRepo is the SQLite implementation of the SubscriptionStore
// port.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new SubscriptionRepo backed by the given DB.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Subscribe adds the (chatID, repo) edge. Returns true when a new edge was
// created; subscribing twice is a no-op, not an error.
func (r *SubscriptionRepo) Subscribe(ctx context.Context, chatID int64, repo string) (bool, error) {
	const query = `INSERT OR IGNORE INTO subscriptions (chat_id, repo, created_at) VALUES (?, ?, ?)`

	result, err := r.db.Writer.ExecContext(ctx, query, chatID, repo, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("subscribe %d to %s: %w", chatID, repo, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// Unsubscribe removes the edge. Removing a non-existent edge is a no-op.
func (r *SubscriptionRepo) Unsubscribe(ctx context.Context, chatID int64, repo string) error {
	const query = `DELETE FROM subscriptions WHERE chat_id = ? AND repo = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, chatID, repo); err != nil {
		return fmt.Errorf("unsubscribe %d from %s: %w", chatID, repo, err)
	}

	return nil
}

// SubscribersOf returns the chat ids subscribed to repo, ordered by chat id.
func (r *SubscriptionRepo) SubscribersOf(ctx context.Context, repo string) ([]int64, error) {
	const query = `SELECT chat_id FROM subscriptions WHERE repo = ? ORDER BY chat_id`

	rows, err := r.db.Reader.QueryContext(ctx, query, repo)
	if err != nil {
		return nil, fmt.Errorf("subscribers of %s: %w", repo, err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		chatIDs = append(chatIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	return chatIDs, nil
}

// RepositoriesOf returns the repositories chatID is subscribed to, ordered by
// name.
func (r *SubscriptionRepo) RepositoriesOf(ctx context.Context, chatID int64) ([]string, error) {
	const query = `SELECT repo FROM subscriptions WHERE chat_id = ? ORDER BY repo`

	rows, err := r.db.Reader.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("repositories of %d: %w", chatID, err)
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// AllActiveRepositories returns every repository with at least one
// subscriber, ordered by name.
func (r *SubscriptionRepo) AllActiveRepositories(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT repo FROM subscriptions ORDER BY repo`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active repositories: %w", err)
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active repositories: %w", err)
	}

	return repos, nil
}
