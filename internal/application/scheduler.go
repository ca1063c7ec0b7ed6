package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// ErrCheckInProgress is returned by CheckNow when the repository already has
// an in-flight check cycle. Manual checks coalesce instead of queueing.
var ErrCheckInProgress = errors.New("check already in progress")

// defaultCheckTimeout bounds one check cycle's upstream and store calls so a
// hung call cannot permanently occupy the repository's lock.
const defaultCheckTimeout = 30 * time.Second

// Scheduler drives the periodic check cycles. Every tick it enumerates the
// repositories with at least one subscriber and runs each one's cycle in its
// own goroutine, so a slow repository never delays the others. A per-
// repository lock table (created lazily, never removed) serializes cycles on
// the same repository across the timer and manual triggers.
type Scheduler struct {
	git        driven.GitClient
	cursors    driven.CursorStore
	subs       driven.SubscriptionStore
	dispatcher *Dispatcher
	policy     *FailurePolicy
	stats      *Stats

	interval     time.Duration
	checkTimeout time.Duration

	locks sync.Map // repo -> *sync.Mutex
	wg    sync.WaitGroup

	// AuthFailure, when set, is invoked on a credential rejection. Auth
	// errors are process-level: the composition root uses this to initiate
	// shutdown instead of letting per-repository retries hammer the API.
	AuthFailure func(error)
}

// NewScheduler creates a Scheduler with all required dependencies.
func NewScheduler(
	git driven.GitClient,
	cursors driven.CursorStore,
	subs driven.SubscriptionStore,
	dispatcher *Dispatcher,
	policy *FailurePolicy,
	stats *Stats,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		git:          git,
		cursors:      cursors,
		subs:         subs,
		dispatcher:   dispatcher,
		policy:       policy,
		stats:        stats,
		interval:     interval,
		checkTimeout: defaultCheckTimeout,
	}
}

// Start begins the polling loop. It runs an immediate tick, then ticks on
// the configured interval. Start blocks until the context is canceled and
// all in-flight cycles have drained; no new cycles start after cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick launches one scheduled check per active repository. Failures and
// slowness are contained per repository.
func (s *Scheduler) tick(ctx context.Context) {
	repos, err := s.subs.AllActiveRepositories(ctx)
	if err != nil {
		slog.Error("list active repositories failed", "error", err)
		return
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return
		}

		s.wg.Add(1)
		go func(repo string) {
			defer s.wg.Done()
			s.scheduledCheck(ctx, repo)
		}(repo)
	}

	slog.Debug("tick dispatched", "repos", len(repos))
}

// scheduledCheck runs one timer-driven cycle for repo, honoring backoff
// windows, the unreachable state, and the per-repository lock.
func (s *Scheduler) scheduledCheck(ctx context.Context, repo string) {
	if !s.policy.Allow(repo, time.Now()) {
		slog.Debug("check suppressed by backoff", "repo", repo)
		return
	}

	mu := s.lockFor(repo)
	if !mu.TryLock() {
		slog.Debug("check coalesced, cycle already running", "repo", repo)
		return
	}
	defer mu.Unlock()

	// Counted before the first store read: failures never outnumber checks.
	s.stats.CheckStarted()

	rec, err := s.cursors.GetRepo(ctx, repo)
	if err != nil {
		s.storageFailure(repo, err)
		return
	}
	if rec != nil && rec.State == model.RepoStateUnreachable {
		return
	}

	if err := s.runCycle(ctx, repo, rec); err != nil {
		slog.Debug("scheduled check failed", "repo", repo, "error", err)
	}
}

// CheckNow runs the identical check cycle immediately, ignoring the interval
// timer and clearing any backoff or unreachable suppression. A repository
// already mid-cycle returns ErrCheckInProgress rather than queueing.
func (s *Scheduler) CheckNow(ctx context.Context, repo string) error {
	mu := s.lockFor(repo)
	if !mu.TryLock() {
		return ErrCheckInProgress
	}
	defer mu.Unlock()

	s.policy.Reset(repo)
	s.stats.CheckStarted()

	rec, err := s.cursors.GetRepo(ctx, repo)
	if err != nil {
		return s.storageFailure(repo, err)
	}
	if rec != nil && rec.State == model.RepoStateUnreachable {
		if err := s.cursors.SetState(ctx, repo, model.RepoStateActive); err != nil {
			return s.storageFailure(repo, err)
		}
		rec.State = model.RepoStateActive
	}

	return s.runCycle(ctx, repo, rec)
}

// runCycle executes one fetch-detect-persist-notify sequence for repo. The
// caller holds the repository's lock.
func (s *Scheduler) runCycle(parent context.Context, repo string, rec *model.Repository) error {
	ctx, cancel := context.WithTimeout(parent, s.checkTimeout)
	defer cancel()

	start := time.Now()

	if rec == nil {
		rec = &model.Repository{FullName: repo, State: model.RepoStateActive}
		if err := s.cursors.UpsertRepo(ctx, *rec); err != nil {
			return s.storageFailure(repo, err)
		}
	}

	branch := rec.DefaultBranch
	if branch == "" {
		resolved, err := s.git.ResolveDefaultBranch(ctx, repo)
		if err != nil {
			return s.adapterFailure(ctx, repo, err)
		}
		branch = resolved
		rec.DefaultBranch = resolved
		if err := s.cursors.UpsertRepo(ctx, *rec); err != nil {
			return s.storageFailure(repo, err)
		}
	}

	cursor, err := s.cursors.GetCursor(ctx, repo)
	if err != nil {
		return s.storageFailure(repo, err)
	}

	delta, err := s.git.ListCommitsSince(ctx, repo, branch, cursor)
	if err != nil {
		return s.adapterFailure(ctx, repo, err)
	}

	result := Detect(cursor, delta)

	if result.NewCursor != nil {
		expected := ""
		if cursor != nil {
			expected = cursor.SHA
		}

		ok, err := s.cursors.CompareAndSet(ctx, repo, expected, *result.NewCursor)
		if err != nil {
			return s.storageFailure(repo, err)
		}
		if !ok {
			// A concurrent cycle advanced the cursor first; its batch wins
			// and this one must not notify.
			slog.Info("cursor advanced concurrently, dropping batch", "repo", repo)
			return nil
		}
	}

	switch result.Outcome {
	case model.OutcomeNewCommits:
		fresh := s.filterLogged(ctx, repo, result.Commits)
		s.dispatcher.DispatchCommits(ctx, repo, fresh)
	case model.OutcomeRebaselined:
		slog.Warn("history rewritten, rebaselined", "repo", repo, "tip", result.NewCursor.SHA)
		s.dispatcher.DispatchRewrite(ctx, repo, result.NewCursor.SHA)
	}

	s.policy.RecordSuccess(repo)
	if err := s.cursors.RecordCheck(ctx, repo, 0); err != nil {
		slog.Error("record check failed", "repo", repo, "error", err)
	}

	slog.Info("repository checked",
		"repo", repo,
		"outcome", string(result.Outcome),
		"commits", len(result.Commits),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// filterLogged writes each commit to the audit log and keeps only the ones
// not already logged, as a second guard against re-notification when the
// upstream returns equal-timestamp commits across cycles.
func (s *Scheduler) filterLogged(ctx context.Context, repo string, commits []model.CommitRef) []model.CommitRef {
	fresh := make([]model.CommitRef, 0, len(commits))

	for _, c := range commits {
		logged, err := s.cursors.LogCommit(ctx, repo, c)
		if err != nil {
			// The cursor already advanced past this commit, so delivering
			// without the log entry cannot cause a duplicate later.
			slog.Error("commit log write failed", "repo", repo, "sha", c.ShortSHA(), "error", err)
			fresh = append(fresh, c)
			continue
		}
		if logged {
			fresh = append(fresh, c)
		}
	}

	return fresh
}

// adapterFailure applies the failure policy to an upstream error and carries
// out its verdict: unreachable escalation, backoff logging, auth surfacing.
func (s *Scheduler) adapterFailure(ctx context.Context, repo string, err error) error {
	s.stats.CheckFailed()

	d := s.policy.RecordFailure(repo, err, time.Now())

	switch d.Kind {
	case FailureAuth:
		slog.Error("github credentials rejected", "repo", repo, "error", err)
		if s.AuthFailure != nil {
			s.AuthFailure(err)
		}

	case FailureNotFound:
		slog.Warn("repository not found", "repo", repo, "consecutive_failures", d.Failures)
		if d.Unreachable {
			if stateErr := s.cursors.SetState(ctx, repo, model.RepoStateUnreachable); stateErr != nil {
				slog.Error("set unreachable state failed", "repo", repo, "error", stateErr)
			}
			s.dispatcher.DispatchUnreachable(ctx, repo)
			slog.Warn("repository marked unreachable, scheduled checks suspended", "repo", repo)
		}

	case FailureRateLimited:
		slog.Warn("rate limited", "repo", repo, "retry_in", d.RetryIn)

	default:
		slog.Warn("transient check failure",
			"repo", repo,
			"retry_in", d.RetryIn,
			"consecutive_failures", d.Failures,
			"error", err,
		)
	}

	if recordErr := s.cursors.RecordCheck(ctx, repo, d.Failures); recordErr != nil {
		slog.Error("record check failed", "repo", repo, "error", recordErr)
	}

	return err
}

// storageFailure fails the cycle without touching the cursor or the failure
// policy; the next tick simply retries.
func (s *Scheduler) storageFailure(repo string, err error) error {
	s.stats.CheckFailed()
	slog.Error("storage failure, cycle retried next tick", "repo", repo, "error", err)
	return err
}

// lockFor returns the repository's mutex, creating it on first use. Entries
// are never removed; the table is bounded by the number of ever-seen
// repositories.
func (s *Scheduler) lockFor(repo string) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(repo, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
