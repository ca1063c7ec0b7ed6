// Package application contains use-case orchestration services.
package application

import "sync/atomic"

// Stats holds the process-wide counters surfaced by the stats command. It is
// constructed once at startup and injected into the scheduler and dispatcher;
// counters reset on process restart.
type Stats struct {
	checks        atomic.Int64
	failures      atomic.Int64
	notifications atomic.Int64
}

// NewStats creates a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

// CheckStarted counts one check cycle.
func (s *Stats) CheckStarted() {
	s.checks.Add(1)
}

// CheckFailed counts one failed check cycle.
func (s *Stats) CheckFailed() {
	s.failures.Add(1)
}

// NotificationSent counts one delivered notification.
func (s *Stats) NotificationSent() {
	s.notifications.Add(1)
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	ChecksPerformed   int64
	Failures          int64
	NotificationsSent int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ChecksPerformed:   s.checks.Load(),
		Failures:          s.failures.Load(),
		NotificationsSent: s.notifications.Load(),
	}
}
