package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// maxCommitsPerBatch caps how many commits of one batch are announced
// individually; the rest are folded into a single summary notification.
const maxCommitsPerBatch = 5

// DefaultSendInterval paces outbound notifications so a large fan-out cannot
// trip the chat transport's flood limits.
const DefaultSendInterval = 500 * time.Millisecond

// Dispatcher fans detected changes out to every subscriber of a repository.
// Delivery is best-effort: one subscriber's failure never affects another's
// delivery, and nothing here touches the cursor.
type Dispatcher struct {
	subs     driven.SubscriptionStore
	notifier driven.Notifier
	limiter  *rate.Limiter
	stats    *Stats
}

// NewDispatcher creates a Dispatcher delivering through notifier, waiting
// sendEvery between sends. A non-positive sendEvery disables pacing.
func NewDispatcher(subs driven.SubscriptionStore, notifier driven.Notifier, stats *Stats, sendEvery time.Duration) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if sendEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(sendEvery), 1)
	}

	return &Dispatcher{
		subs:     subs,
		notifier: notifier,
		limiter:  limiter,
		stats:    stats,
	}
}

// DispatchCommits delivers a batch of new commits (oldest-first) to every
// subscriber of repo, preserving chronological order per subscriber.
func (d *Dispatcher) DispatchCommits(ctx context.Context, repo string, commits []model.CommitRef) {
	if len(commits) == 0 {
		return
	}

	chatIDs, err := d.subs.SubscribersOf(ctx, repo)
	if err != nil {
		slog.Error("subscriber lookup failed", "repo", repo, "error", err)
		return
	}

	for _, chatID := range chatIDs {
		d.deliverBatch(ctx, chatID, repo, commits)
	}

	slog.Info("commits dispatched",
		"repo", repo,
		"commits", len(commits),
		"subscribers", len(chatIDs),
	)
}

// deliverBatch sends one subscriber its notifications for a batch. At most
// maxCommitsPerBatch commits (the newest ones, still in chronological order)
// are announced individually; an overflow summary covers the rest.
func (d *Dispatcher) deliverBatch(ctx context.Context, chatID int64, repo string, commits []model.CommitRef) {
	shown := commits
	hidden := 0
	if len(commits) > maxCommitsPerBatch {
		hidden = len(commits) - maxCommitsPerBatch
		shown = commits[hidden:]
	}

	for _, c := range shown {
		d.send(ctx, chatID, model.Notification{
			Kind:    model.KindNewCommit,
			Repo:    repo,
			RepoURL: repoURL(repo),
			Commit:  c,
		})
	}

	if hidden > 0 {
		d.send(ctx, chatID, model.Notification{
			Kind:          model.KindBatchSummary,
			Repo:          repo,
			RepoURL:       repoURL(repo),
			TotalCommits:  len(commits),
			HiddenCommits: hidden,
		})
	}
}

// DispatchRewrite informs every subscriber that the repository's history was
// rewritten and tracking restarted at tipSHA.
func (d *Dispatcher) DispatchRewrite(ctx context.Context, repo, tipSHA string) {
	d.broadcast(ctx, repo, model.Notification{
		Kind:    model.KindHistoryRewritten,
		Repo:    repo,
		RepoURL: repoURL(repo),
		TipSHA:  tipSHA,
	})
}

// DispatchUnreachable informs every subscriber that the repository became
// unreachable. The scheduler calls this exactly once per unreachable
// transition.
func (d *Dispatcher) DispatchUnreachable(ctx context.Context, repo string) {
	d.broadcast(ctx, repo, model.Notification{
		Kind:    model.KindUnreachable,
		Repo:    repo,
		RepoURL: repoURL(repo),
	})
}

func (d *Dispatcher) broadcast(ctx context.Context, repo string, n model.Notification) {
	chatIDs, err := d.subs.SubscribersOf(ctx, repo)
	if err != nil {
		slog.Error("subscriber lookup failed", "repo", repo, "error", err)
		return
	}

	for _, chatID := range chatIDs {
		d.send(ctx, chatID, n)
	}
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, n model.Notification) {
	if err := d.limiter.Wait(ctx); err != nil {
		slog.Warn("notification dropped before send",
			"chat_id", chatID,
			"repo", n.Repo,
			"kind", string(n.Kind),
			"error", err,
		)
		return
	}

	if err := d.notifier.Notify(ctx, chatID, n); err != nil {
		slog.Error("notify failed",
			"chat_id", chatID,
			"repo", n.Repo,
			"kind", string(n.Kind),
			"error", err,
		)
		return
	}

	d.stats.NotificationSent()
}

func repoURL(repo string) string {
	return model.Repository{FullName: repo}.URL()
}
