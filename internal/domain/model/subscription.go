package model

import "time"

// Subscription is the many-to-many edge between a chat and a repository.
type Subscription struct {
	ChatID    int64
	Repo      string // Normalized owner/name.
	CreatedAt time.Time
}
