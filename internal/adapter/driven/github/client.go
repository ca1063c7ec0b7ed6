// Package github implements the GitClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitClient = (*Client)(nil)

const (
	// commitPageSize matches the upstream default window for new-commit
	// listing; pagination covers bursts larger than one page.
	commitPageSize = 20

	// maxDetailFetches bounds the per-commit detail calls (file counts) in a
	// single cycle so one huge push cannot burn the rate limit budget.
	maxDetailFetches = 20
)

// Client implements the driven.GitClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ResolveDefaultBranch returns the repository's default branch name.
func (c *Client) ResolveDefaultBranch(ctx context.Context, repoFullName string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	repository, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", classifyError(repoFullName, err)
	}

	logRateLimit(resp, repoFullName, 0, 1)

	branch := repository.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("repository %s reports no default branch", repoFullName)
	}

	return branch, nil
}

// ListCommitsSince returns the commits on branch strictly newer than cursor,
// newest-first, plus the current branch tip. With a nil cursor only the tip
// is fetched. An empty repository yields an empty delta with a nil tip.
func (c *Client) ListCommitsSince(ctx context.Context, repoFullName, branch string, cursor *model.Cursor) (model.CommitDelta, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return model.CommitDelta{}, err
	}

	if cursor == nil {
		tip, err := c.fetchTip(ctx, owner, repo, branch, repoFullName)
		if err != nil {
			return model.CommitDelta{}, err
		}
		return model.CommitDelta{Tip: tip}, nil
	}

	opts := &gh.CommitsListOptions{
		SHA:   branch,
		Since: cursor.CommittedAt,
		ListOptions: gh.ListOptions{
			PerPage: commitPageSize,
		},
	}

	var fetched []model.CommitRef

	for {
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			if isEmptyRepo(err) {
				return model.CommitDelta{}, nil
			}
			return model.CommitDelta{}, classifyError(repoFullName, err)
		}

		logRateLimit(resp, repoFullName+"/commits", opts.Page, len(commits))

		for _, rc := range commits {
			ref := mapCommit(rc)
			// The since parameter is inclusive: drop the cursor commit itself
			// and anything older.
			if ref.SHA == cursor.SHA || ref.CommittedAt.Before(cursor.CommittedAt) {
				continue
			}
			fetched = append(fetched, ref)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if len(fetched) == 0 {
		// Nothing after the cursor. The tip still has to be reported so the
		// caller can spot a rewritten history (tip moved, delta empty).
		tip, err := c.fetchTip(ctx, owner, repo, branch, repoFullName)
		if err != nil {
			return model.CommitDelta{}, err
		}
		return model.CommitDelta{Tip: tip}, nil
	}

	c.fillFileCounts(ctx, owner, repo, repoFullName, fetched)

	tip := fetched[0]
	return model.CommitDelta{Commits: fetched, Tip: &tip}, nil
}

// fetchTip returns the newest commit on branch, or nil for an empty
// repository.
func (c *Client) fetchTip(ctx context.Context, owner, repo, branch, repoFullName string) (*model.CommitRef, error) {
	opts := &gh.CommitsListOptions{
		SHA:         branch,
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		if isEmptyRepo(err) {
			return nil, nil
		}
		return nil, classifyError(repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/tip", 0, len(commits))

	if len(commits) == 0 {
		return nil, nil
	}

	tip := mapCommit(commits[0])
	return &tip, nil
}

// fillFileCounts fetches per-commit detail to populate added/removed/modified
// file counts. Best effort: a failed detail fetch leaves the counts at zero
// and never fails the cycle.
func (c *Client) fillFileCounts(ctx context.Context, owner, repo, repoFullName string, commits []model.CommitRef) {
	n := len(commits)
	if n > maxDetailFetches {
		n = maxDetailFetches
	}

	for i := 0; i < n; i++ {
		detail, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, commits[i].SHA, nil)
		if err != nil {
			slog.Warn("commit detail fetch failed",
				"repo", repoFullName,
				"sha", commits[i].ShortSHA(),
				"error", err,
			)
			continue
		}

		for _, f := range detail.Files {
			switch f.GetStatus() {
			case "added":
				commits[i].Added++
			case "removed":
				commits[i].Removed++
			default:
				commits[i].Modified++
			}
		}
	}
}

// mapCommit converts a go-github RepositoryCommit to a domain CommitRef.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit) model.CommitRef {
	commit := rc.GetCommit()

	return model.CommitRef{
		SHA:         rc.GetSHA(),
		Message:     strings.TrimSpace(commit.GetMessage()),
		AuthorName:  commit.GetAuthor().GetName(),
		AuthorEmail: commit.GetAuthor().GetEmail(),
		CommittedAt: commit.GetAuthor().GetDate().Time,
		URL:         rc.GetHTMLURL(),
	}
}

// classifyError maps go-github errors onto the port's error contract:
// 404/403 become ErrRepoNotFound, 401 becomes ErrAuth, rate limit responses
// become *driven.RateLimitError, anything else passes through as transient.
func classifyError(repoFullName string, err error) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		retryAfter := time.Until(rateLimitErr.Rate.Reset.Time)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &driven.RateLimitError{RetryAfter: retryAfter}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var retryAfter time.Duration
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &driven.RateLimitError{RetryAfter: retryAfter}
	}

	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return fmt.Errorf("%s: %w", repoFullName, driven.ErrRepoNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", repoFullName, driven.ErrAuth)
		case http.StatusTooManyRequests:
			return &driven.RateLimitError{}
		}
	}

	return fmt.Errorf("fetching %s: %w", repoFullName, err)
}

// isEmptyRepo reports whether the error is GitHub's 409 "Git Repository is
// empty" response to a commit listing.
func isEmptyRepo(err error) bool {
	var errResp *gh.ErrorResponse
	return errors.As(err, &errResp) &&
		errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusConflict
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
