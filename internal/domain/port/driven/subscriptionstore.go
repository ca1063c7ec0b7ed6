package driven

import "context"

// SubscriptionStore is the port for the durable chat-to-repository edge set
// and its inverse. All operations are idempotent.
type SubscriptionStore interface {
	// Subscribe adds the (chatID, repo) edge. Returns true when a new edge
	// was created, false when it already existed.
	Subscribe(ctx context.Context, chatID int64, repo string) (bool, error)

	// Unsubscribe removes the edge. Removing a non-existent edge is a no-op.
	Unsubscribe(ctx context.Context, chatID int64, repo string) error

	// SubscribersOf returns the chat ids subscribed to repo, possibly empty.
	SubscribersOf(ctx context.Context, repo string) ([]int64, error)

	// RepositoriesOf returns the repositories chatID is subscribed to.
	RepositoriesOf(ctx context.Context, chatID int64) ([]string, error)

	// AllActiveRepositories returns every repository with at least one
	// subscriber. This is exactly the scheduler's iteration domain per tick.
	AllActiveRepositories(ctx context.Context) ([]string, error)
}
