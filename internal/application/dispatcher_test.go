package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashkanrb/commitwatch/internal/application"
	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

func newTestDispatcher(subs *mockSubStore, notifier *mockNotifier, stats *application.Stats) *application.Dispatcher {
	return application.NewDispatcher(subs, notifier, stats, 0)
}

func TestDispatcher_FansOutToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()
	stats := application.NewStats()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)
	_, err = subs.Subscribe(ctx, 200, "owner/repo")
	require.NoError(t, err)

	d := newTestDispatcher(subs, notifier, stats)
	d.DispatchCommits(ctx, "owner/repo", []model.CommitRef{
		commitAt("aaa1111", time.Now()),
	})

	assert.Len(t, notifier.sentTo(100), 1)
	assert.Len(t, notifier.sentTo(200), 1)
	assert.Equal(t, int64(2), stats.Snapshot().NotificationsSent)
}

func TestDispatcher_SubscriberFailureDoesNotSuppressOthers(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()
	notifier.failFor[100] = errors.New("chat gone")

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)
	_, err = subs.Subscribe(ctx, 200, "owner/repo")
	require.NoError(t, err)

	stats := application.NewStats()
	d := newTestDispatcher(subs, notifier, stats)
	d.DispatchCommits(ctx, "owner/repo", []model.CommitRef{
		commitAt("aaa1111", time.Now()),
	})

	assert.Empty(t, notifier.sentTo(100))
	assert.Len(t, notifier.sentTo(200), 1)
	assert.Equal(t, int64(1), stats.Snapshot().NotificationsSent)
}

func TestDispatcher_PreservesChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newTestDispatcher(subs, notifier, application.NewStats())
	d.DispatchCommits(ctx, "owner/repo", []model.CommitRef{
		commitAt("aaa1111", base),
		commitAt("bbb2222", base.Add(time.Minute)),
		commitAt("ccc3333", base.Add(2*time.Minute)),
	})

	got := notifier.sentTo(100)
	require.Len(t, got, 3)
	assert.Equal(t, "aaa1111", got[0].N.Commit.SHA)
	assert.Equal(t, "bbb2222", got[1].N.Commit.SHA)
	assert.Equal(t, "ccc3333", got[2].N.Commit.SHA)

	for _, dl := range got {
		assert.Equal(t, model.KindNewCommit, dl.N.Kind)
		assert.Equal(t, "owner/repo", dl.N.Repo)
		assert.Equal(t, "https://github.com/owner/repo", dl.N.RepoURL)
	}
}

func TestDispatcher_LargeBatchCapsAtFiveNewestPlusSummary(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	commits := make([]model.CommitRef, 8)
	for i := range commits {
		commits[i] = commitAt(string(rune('a'+i))+"1234567", base.Add(time.Duration(i)*time.Minute))
	}

	d := newTestDispatcher(subs, notifier, application.NewStats())
	d.DispatchCommits(ctx, "owner/repo", commits)

	got := notifier.sentTo(100)
	require.Len(t, got, 6, "five commit notices plus one summary")

	// The newest five, still oldest-first.
	for i := 0; i < 5; i++ {
		assert.Equal(t, model.KindNewCommit, got[i].N.Kind)
		assert.Equal(t, commits[3+i].SHA, got[i].N.Commit.SHA)
	}

	summary := got[5].N
	assert.Equal(t, model.KindBatchSummary, summary.Kind)
	assert.Equal(t, 8, summary.TotalCommits)
	assert.Equal(t, 3, summary.HiddenCommits)
}

func TestDispatcher_EmptyBatchSendsNothing(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)

	d := newTestDispatcher(subs, notifier, application.NewStats())
	d.DispatchCommits(ctx, "owner/repo", nil)

	assert.Empty(t, notifier.sent())
}

func TestDispatcher_CanceledContextDropsSends(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	stats := application.NewStats()
	d := newTestDispatcher(subs, notifier, stats)
	d.DispatchCommits(canceled, "owner/repo", []model.CommitRef{
		commitAt("aaa1111", time.Now()),
	})

	assert.Empty(t, notifier.sent(), "nothing delivered after cancellation")
	assert.Zero(t, stats.Snapshot().NotificationsSent)
}

func TestDispatcher_Rewrite(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)

	d := newTestDispatcher(subs, notifier, application.NewStats())
	d.DispatchRewrite(ctx, "owner/repo", "fff9999")

	got := notifier.sentTo(100)
	require.Len(t, got, 1)
	assert.Equal(t, model.KindHistoryRewritten, got[0].N.Kind)
	assert.Equal(t, "fff9999", got[0].N.TipSHA)
}

func TestDispatcher_Unreachable(t *testing.T) {
	ctx := context.Background()
	subs := newMockSubStore()
	notifier := newMockNotifier()

	_, err := subs.Subscribe(ctx, 100, "owner/repo")
	require.NoError(t, err)
	_, err = subs.Subscribe(ctx, 200, "owner/repo")
	require.NoError(t, err)

	d := newTestDispatcher(subs, notifier, application.NewStats())
	d.DispatchUnreachable(ctx, "owner/repo")

	require.Len(t, notifier.sent(), 2)
	for _, dl := range notifier.sent() {
		assert.Equal(t, model.KindUnreachable, dl.N.Kind)
		assert.Equal(t, "owner/repo", dl.N.Repo)
	}
}
