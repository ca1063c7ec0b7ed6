package application

import "github.com/ashkanrb/commitwatch/internal/domain/model"

// Detect computes what one check cycle should do, given the stored cursor and
// a freshly fetched delta. It is a pure function; persistence and delivery
// are the caller's job.
//
// A nil cursor means the repository has never been checked: the tip becomes
// the baseline and nothing is announced, so pre-existing history is never
// notified. When the delta is empty but the tip no longer matches the stored
// cursor, the branch history was rewritten; the cursor is reset to the tip
// and a single rewrite notice replaces any guess at the true delta.
func Detect(cursor *model.Cursor, delta model.CommitDelta) model.CheckResult {
	if cursor == nil {
		if delta.Tip == nil {
			// Empty repository: nothing to baseline yet.
			return model.CheckResult{Outcome: model.OutcomeNoChange}
		}
		return model.CheckResult{
			Outcome:   model.OutcomeNoChange,
			NewCursor: &model.Cursor{SHA: delta.Tip.SHA, CommittedAt: delta.Tip.CommittedAt},
		}
	}

	if len(delta.Commits) > 0 {
		// The adapter already excluded everything at or before the cursor, so
		// the whole list is new. Reverse to oldest-first for delivery.
		ordered := make([]model.CommitRef, len(delta.Commits))
		for i, c := range delta.Commits {
			ordered[len(delta.Commits)-1-i] = c
		}

		newest := delta.Commits[0]
		return model.CheckResult{
			Outcome:   model.OutcomeNewCommits,
			Commits:   ordered,
			NewCursor: &model.Cursor{SHA: newest.SHA, CommittedAt: newest.CommittedAt},
		}
	}

	if delta.Tip != nil && delta.Tip.SHA != cursor.SHA {
		return model.CheckResult{
			Outcome:   model.OutcomeRebaselined,
			NewCursor: &model.Cursor{SHA: delta.Tip.SHA, CommittedAt: delta.Tip.CommittedAt},
		}
	}

	return model.CheckResult{Outcome: model.OutcomeNoChange}
}
