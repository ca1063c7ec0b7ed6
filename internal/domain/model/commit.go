package model

import "time"

// CommitRef carries the metadata of a single commit as fetched from the
// upstream API. The change detector treats it as an opaque payload; only the
// dispatcher reads the individual fields.
type CommitRef struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	CommittedAt time.Time
	URL         string
	Added       int // Files added in this commit.
	Removed     int // Files removed.
	Modified    int // Files modified.
}

// ShortSHA returns the 7-character abbreviated commit id for display.
func (c CommitRef) ShortSHA() string {
	if len(c.SHA) < 7 {
		return c.SHA
	}
	return c.SHA[:7]
}

// Summary returns the first line of the commit message, truncated to at most
// 300 runes.
func (c CommitRef) Summary() string {
	msg := c.Message
	if i := indexNewline(msg); i >= 0 {
		msg = msg[:i]
	}
	runes := []rune(msg)
	if len(runes) > 300 {
		return string(runes[:297]) + "..."
	}
	return msg
}

func indexNewline(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return i
		}
	}
	return -1
}

// CommitDelta is the result of one adapter fetch: the commits strictly newer
// than the caller's cursor in newest-first order, plus the current branch tip.
// Tip is nil only for an empty repository.
type CommitDelta struct {
	Commits []CommitRef
	Tip     *CommitRef
}
