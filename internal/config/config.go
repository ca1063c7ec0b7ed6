// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinPollInterval is the floor for the check interval; shorter values are
// raised to it so a misconfiguration cannot hammer the upstream rate limits.
const MinPollInterval = 10 * time.Second

// Config holds the application configuration loaded from environment variables.
type Config struct {
	BotToken     string  // Chat transport credential, handed to the transport adapter.
	GitHubToken  string  // Upstream API credential.
	AdminChatIDs []int64 // Privileged chats; gates mutating commands at the transport.
	PollInterval time.Duration
	DBPath       string
}

// IsAdmin reports whether chatID is in the configured admin list.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables and returns a validated
// Config. COMMITWATCH_BOT_TOKEN and COMMITWATCH_GITHUB_TOKEN are required.
// Optional variables with defaults: COMMITWATCH_CHECK_INTERVAL (seconds,
// default 60, minimum enforced), COMMITWATCH_DB_PATH (commitwatch.db),
// COMMITWATCH_ADMIN_CHAT_IDS (comma-separated chat ids, empty by default).
func Load() (*Config, error) {
	botToken := os.Getenv("COMMITWATCH_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("COMMITWATCH_BOT_TOKEN is not set")
	}

	githubToken := os.Getenv("COMMITWATCH_GITHUB_TOKEN")
	if githubToken == "" {
		return nil, fmt.Errorf("COMMITWATCH_GITHUB_TOKEN is not set")
	}

	pollInterval := 60 * time.Second
	if v, ok := os.LookupEnv("COMMITWATCH_CHECK_INTERVAL"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("COMMITWATCH_CHECK_INTERVAL has invalid value %q: expected seconds", v)
		}
		pollInterval = time.Duration(secs) * time.Second
	}
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}

	dbPath := "commitwatch.db"
	if v, ok := os.LookupEnv("COMMITWATCH_DB_PATH"); ok {
		dbPath = v
	}

	adminIDs, err := parseAdminIDs(os.Getenv("COMMITWATCH_ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, err
	}

	return &Config{
		BotToken:     botToken,
		GitHubToken:  githubToken,
		AdminChatIDs: adminIDs,
		PollInterval: pollInterval,
		DBPath:       dbPath,
	}, nil
}

// parseAdminIDs parses a comma-separated chat id list. Surrounding brackets
// are tolerated ("[123,456]" and "123,456" are equivalent).
func parseAdminIDs(raw string) ([]int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	if s == "" {
		return []int64{}, nil
	}

	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("COMMITWATCH_ADMIN_CHAT_IDS has invalid chat id %q", part)
		}
		ids = append(ids, id)
	}

	if ids == nil {
		ids = []int64{}
	}

	return ids, nil
}
