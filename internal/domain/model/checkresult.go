package model

// CheckOutcome classifies the result of one check cycle.
type CheckOutcome string

const (
	// OutcomeNoChange means no new commits. Covers the silent baseline of a
	// never-seen repository, which advances the cursor without notifying.
	OutcomeNoChange CheckOutcome = "no_change"
	// OutcomeNewCommits means at least one new commit was detected.
	OutcomeNewCommits CheckOutcome = "new_commits"
	// OutcomeRebaselined means the stored cursor is no longer reachable from
	// the branch tip (history rewrite); the cursor was reset to the tip.
	OutcomeRebaselined CheckOutcome = "rebaselined"
)

// CheckResult is the ephemeral product of one check cycle. It is not
// persisted beyond the cursor advance and logging.
type CheckResult struct {
	Outcome CheckOutcome
	// Commits holds the detected commits in oldest-first order, ready for
	// chronological delivery. Empty unless Outcome is OutcomeNewCommits.
	Commits []CommitRef
	// NewCursor is the cursor value to persist, or nil when the cursor does
	// not move.
	NewCursor *Cursor
}
