package application

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ashkanrb/commitwatch/internal/domain/port/driven"
)

// FailureKind classifies an adapter error for policy purposes.
type FailureKind string

const (
	FailureNotFound    FailureKind = "not_found"
	FailureAuth        FailureKind = "auth"
	FailureRateLimited FailureKind = "rate_limited"
	FailureTransient   FailureKind = "transient"
)

// ClassifyFailure maps an adapter error onto its FailureKind. Anything that
// is not one of the port's declared error kinds counts as transient.
func ClassifyFailure(err error) FailureKind {
	var rateLimitErr *driven.RateLimitError
	switch {
	case errors.Is(err, driven.ErrRepoNotFound):
		return FailureNotFound
	case errors.Is(err, driven.ErrAuth):
		return FailureAuth
	case errors.As(err, &rateLimitErr):
		return FailureRateLimited
	default:
		return FailureTransient
	}
}

// DefaultUnreachableThreshold is how many consecutive not-found results it
// takes to mark a repository unreachable.
const DefaultUnreachableThreshold = 3

const (
	defaultRateLimitPause = time.Minute
	transientInitialWait  = 30 * time.Second
	transientMaxWait      = 30 * time.Minute
)

// Disposition is the policy's verdict on one failed check cycle.
type Disposition struct {
	Kind FailureKind
	// Failures is the repository's consecutive failure streak, all kinds.
	Failures int
	// RetryIn is how long scheduled checks are suppressed; zero means the
	// next tick retries normally.
	RetryIn time.Duration
	// Unreachable is true exactly once, on the tick where the not-found
	// streak reaches the threshold. The caller sends the one-per-transition
	// subscriber notice and persists the state change.
	Unreachable bool
}

// FailurePolicy tracks per-repository failure streaks and backoff windows.
// It holds no durable state; the persisted consecutive-failure count in the
// cursor store is written by the scheduler from Disposition.Failures.
type FailurePolicy struct {
	mu               sync.Mutex
	unreachableAfter int
	entries          map[string]*repoHealth
}

type repoHealth struct {
	failures       int
	notFoundStreak int
	suspendedUntil time.Time
	transientWait  *backoff.ExponentialBackOff
}

// NewFailurePolicy creates a policy that escalates to unreachable after
// unreachableAfter consecutive not-found results.
func NewFailurePolicy(unreachableAfter int) *FailurePolicy {
	if unreachableAfter <= 0 {
		unreachableAfter = DefaultUnreachableThreshold
	}
	return &FailurePolicy{
		unreachableAfter: unreachableAfter,
		entries:          make(map[string]*repoHealth),
	}
}

// Allow reports whether a scheduled check for repo may run at now, i.e. the
// repository is not inside a backoff or rate limit window.
func (p *FailurePolicy) Allow(repo string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.entries[repo]
	if !ok {
		return true
	}
	return !now.Before(h.suspendedUntil)
}

// RecordFailure updates the repository's failure state for one failed cycle
// and returns the policy verdict.
func (p *FailurePolicy) RecordFailure(repo string, err error, now time.Time) Disposition {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.entries[repo]
	if !ok {
		h = &repoHealth{}
		p.entries[repo] = h
	}

	h.failures++
	kind := ClassifyFailure(err)
	d := Disposition{Kind: kind, Failures: h.failures}

	switch kind {
	case FailureNotFound:
		h.notFoundStreak++
		if h.notFoundStreak == p.unreachableAfter {
			d.Unreachable = true
		}

	case FailureRateLimited:
		h.notFoundStreak = 0
		retryIn := defaultRateLimitPause
		var rateLimitErr *driven.RateLimitError
		if errors.As(err, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
			retryIn = rateLimitErr.RetryAfter
		}
		h.suspendedUntil = now.Add(retryIn)
		d.RetryIn = retryIn

	case FailureTransient:
		h.notFoundStreak = 0
		if h.transientWait == nil {
			h.transientWait = newTransientBackoff()
		}
		retryIn := h.transientWait.NextBackOff()
		if retryIn == backoff.Stop {
			retryIn = transientMaxWait
		}
		h.suspendedUntil = now.Add(retryIn)
		d.RetryIn = retryIn

	case FailureAuth:
		// Process-level condition; no per-repository suppression. The caller
		// surfaces it prominently.
		h.notFoundStreak = 0
	}

	return d
}

// RecordSuccess clears the repository's failure state after a completed
// cycle, resetting backoff and streaks.
func (p *FailurePolicy) RecordSuccess(repo string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, repo)
}

// Reset clears suppression for repo. Used by manual checks and re-adds,
// which always get an immediate attempt.
func (p *FailurePolicy) Reset(repo string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, repo)
}

func newTransientBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = transientInitialWait
	b.MaxInterval = transientMaxWait
	b.MaxElapsedTime = 0 // Never give up; unreachable escalation is NotFound-only.
	b.Reset()
	return b
}
