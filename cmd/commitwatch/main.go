package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ashkanrb/commitwatch/internal/adapter/driven/github"
	sqliteadapter "github.com/ashkanrb/commitwatch/internal/adapter/driven/sqlite"
	"github.com/ashkanrb/commitwatch/internal/application"
	"github.com/ashkanrb/commitwatch/internal/config"
	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"admins", len(cfg.AdminChatIDs),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and application services.
	cursorStore := sqliteadapter.NewCursorRepo(db)
	subStore := sqliteadapter.NewSubscriptionRepo(db)
	ghClient := githubadapter.NewClient(cfg.GitHubToken)

	stats := application.NewStats()
	policy := application.NewFailurePolicy(application.DefaultUnreachableThreshold)

	// The chat transport (driving adapter) is wired here in a full
	// deployment, consuming cfg.BotToken and cfg.AdminChatIDs and talking to
	// an application.CommandService. Until one is connected, notifications
	// land in the log.
	dispatcher := application.NewDispatcher(subStore, &logNotifier{}, stats, application.DefaultSendInterval)

	sched := application.NewScheduler(ghClient, cursorStore, subStore, dispatcher, policy, stats, cfg.PollInterval)
	sched.AuthFailure = func(err error) {
		slog.Error("github credentials rejected, shutting down", "error", err)
		stop()
	}

	// 6. Start the scheduler; it runs an immediate tick, then polls on the
	// configured interval.
	schedDone := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(schedDone)
	}()

	slog.Info("commitwatch started", "poll_interval", cfg.PollInterval)

	// 7. Wait for shutdown signal, then drain in-flight check cycles.
	<-ctx.Done()
	slog.Info("shutting down")

	select {
	case <-schedDone:
	case <-time.After(30 * time.Second):
		slog.Error("scheduler drain timed out")
	}

	slog.Info("shutdown complete")
	return nil
}

// logNotifier is the default Notifier sink used when no chat transport is
// connected: it writes each would-be message to the log.
type logNotifier struct{}

func (l *logNotifier) Notify(_ context.Context, chatID int64, n model.Notification) error {
	slog.Info("notification",
		"chat_id", chatID,
		"kind", string(n.Kind),
		"repo", n.Repo,
		"sha", n.Commit.ShortSHA(),
		"summary", n.Commit.Summary(),
	)
	return nil
}
