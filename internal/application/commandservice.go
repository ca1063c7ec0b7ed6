package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// CommandService implements the core's reactions to inbound chat commands.
// The transport parses commands and formats replies; this service owns the
// semantics of add, remove, list, check, and stats.
type CommandService struct {
	subs    driven.SubscriptionStore
	cursors driven.CursorStore
	git     driven.GitClient
	sched   *Scheduler
	stats   *Stats
}

// NewCommandService creates a CommandService with all required dependencies.
func NewCommandService(
	subs driven.SubscriptionStore,
	cursors driven.CursorStore,
	git driven.GitClient,
	sched *Scheduler,
	stats *Stats,
) *CommandService {
	return &CommandService{
		subs:    subs,
		cursors: cursors,
		git:     git,
		sched:   sched,
		stats:   stats,
	}
}

// Add subscribes chatID to the repository named by rawRepo and returns the
// normalized name. For a never-seen repository it resolves the default
// branch and establishes the cursor baseline silently, so pre-existing
// history is not announced. Re-adding an unreachable repository wakes it.
// Subscribing twice is a no-op.
func (s *CommandService) Add(ctx context.Context, chatID int64, rawRepo string) (string, error) {
	repo, err := model.NormalizeRepoName(rawRepo)
	if err != nil {
		return "", err
	}

	created, err := s.subs.Subscribe(ctx, chatID, repo)
	if err != nil {
		return "", err
	}

	rec, err := s.cursors.GetRepo(ctx, repo)
	if err != nil {
		return "", err
	}

	if rec == nil {
		branch, err := s.git.ResolveDefaultBranch(ctx, repo)
		if err != nil {
			// Unknown or inaccessible repository: roll the edge back so a
			// bad name does not linger in the scheduler's domain.
			if unsubErr := s.subs.Unsubscribe(ctx, chatID, repo); unsubErr != nil {
				slog.Error("rollback unsubscribe failed", "chat_id", chatID, "repo", repo, "error", unsubErr)
			}
			return "", err
		}

		if err := s.cursors.UpsertRepo(ctx, model.Repository{
			FullName:      repo,
			DefaultBranch: branch,
			State:         model.RepoStateActive,
		}); err != nil {
			return "", err
		}

		s.baseline(ctx, repo)
	} else if rec.State == model.RepoStateUnreachable {
		if err := s.cursors.SetState(ctx, repo, model.RepoStateActive); err != nil {
			return "", err
		}
		s.baseline(ctx, repo)
	}

	slog.Info("subscription added", "chat_id", chatID, "repo", repo, "new_edge", created)
	return repo, nil
}

// baseline triggers an immediate check so a fresh or re-awakened repository
// gets its cursor set now instead of on the next tick. Best effort: a
// concurrent cycle or a failed first check just defers to the scheduler.
func (s *CommandService) baseline(ctx context.Context, repo string) {
	if err := s.sched.CheckNow(ctx, repo); err != nil && !errors.Is(err, ErrCheckInProgress) {
		slog.Warn("initial check failed, scheduler will retry", "repo", repo, "error", err)
	}
}

// Remove unsubscribes chatID from the repository and returns the normalized
// name. Removing a repository that was never added is a no-op. The
// repository record and its cursor stay dormant so a later re-add does not
// re-announce old history.
func (s *CommandService) Remove(ctx context.Context, chatID int64, rawRepo string) (string, error) {
	repo, err := model.NormalizeRepoName(rawRepo)
	if err != nil {
		return "", err
	}

	if err := s.subs.Unsubscribe(ctx, chatID, repo); err != nil {
		return "", err
	}

	slog.Info("subscription removed", "chat_id", chatID, "repo", repo)
	return repo, nil
}

// List returns the repositories chatID is subscribed to.
func (s *CommandService) List(ctx context.Context, chatID int64) ([]string, error) {
	return s.subs.RepositoriesOf(ctx, chatID)
}

// CheckAll triggers an immediate check for each of the subscriber's
// repositories and returns how many cycles actually ran. Repositories with a
// cycle already in flight are coalesced, not queued.
func (s *CommandService) CheckAll(ctx context.Context, chatID int64) (int, error) {
	repos, err := s.subs.RepositoriesOf(ctx, chatID)
	if err != nil {
		return 0, err
	}

	var ran int
	for _, repo := range repos {
		err := s.sched.CheckNow(ctx, repo)
		switch {
		case errors.Is(err, ErrCheckInProgress):
			slog.Debug("manual check coalesced", "repo", repo)
		case err != nil:
			slog.Warn("manual check failed", "repo", repo, "error", err)
		default:
			ran++
		}
	}

	return ran, nil
}

// StatsReport is the payload of the stats command.
type StatsReport struct {
	ReposTracked      int
	ChecksPerformed   int64
	Failures          int64
	NotificationsSent int64
}

// Report returns the process-wide counters plus the current tracked
// repository count.
func (s *CommandService) Report(ctx context.Context) (StatsReport, error) {
	repos, err := s.subs.AllActiveRepositories(ctx)
	if err != nil {
		return StatsReport{}, err
	}

	snap := s.stats.Snapshot()
	return StatsReport{
		ReposTracked:      len(repos),
		ChecksPerformed:   snap.ChecksPerformed,
		Failures:          snap.Failures,
		NotificationsSent: snap.NotificationsSent,
	}, nil
}
