package model

import "time"

// Cursor identifies the most recently detected commit on a repository's
// tracked branch. It only ever advances: once set to a commit, no ancestor of
// that commit is notified again.
type Cursor struct {
	SHA         string
	CommittedAt time.Time
}
