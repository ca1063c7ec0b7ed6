package model

// NotificationKind discriminates the outbound payload variants.
type NotificationKind string

const (
	// KindNewCommit announces one new commit. Commit is populated.
	KindNewCommit NotificationKind = "new_commit"
	// KindBatchSummary closes out a large batch: TotalCommits commits were
	// detected, HiddenCommits of them were not announced individually.
	KindBatchSummary NotificationKind = "batch_summary"
	// KindHistoryRewritten informs subscribers that the branch history was
	// rewritten and tracking restarted at TipSHA.
	KindHistoryRewritten NotificationKind = "history_rewritten"
	// KindUnreachable informs subscribers that the repository became
	// unreachable and scheduled checks were suspended. Sent exactly once per
	// unreachable transition.
	KindUnreachable NotificationKind = "unreachable"
)

// Notification is the payload handed to the chat transport. Formatting,
// localization, and delivery mechanics are the transport's concern.
type Notification struct {
	Kind    NotificationKind
	Repo    string // Normalized owner/name.
	RepoURL string

	Commit CommitRef // Valid for KindNewCommit only.

	TotalCommits  int // KindBatchSummary.
	HiddenCommits int // KindBatchSummary.

	TipSHA string // KindHistoryRewritten.
}
