package database

import (
	"fmt"
	"time"
)

// FeedKind identifies the wire format a feed was parsed from.
type FeedKind string

const (
	FeedKindAtom FeedKind = "Atom"
	FeedKindRSS  FeedKind = "RSS"
)

func ParseFeedKind(s string) (FeedKind, error) {
	switch FeedKind(s) {
	case FeedKindAtom:
		return FeedKindAtom, nil
	case FeedKindRSS:
		return FeedKindRSS, nil
	default:
		return "", fmt.Errorf("%q is not a valid feed kind", s)
	}
}

// ReadMode selects which entries a listing returns.
type ReadMode string

const (
	ShowUnread  ReadMode = "unread"
	ShowRead    ReadMode = "read"
	ReadModeAll ReadMode = "all"
)

type Feed struct {
	ID          int64
	Title       *string
	SiteLink    *string // homepage link taken from the document
	SourceURL   string  // URL polled for updates
	Kind        FeedKind
	RefreshedAt *time.Time // last successful fetch, regardless of new entries
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Entry struct {
	ID          int64
	FeedID      int64
	Title       *string
	Author      *string
	PublishedAt *time.Time
	Summary     *string
	Content     *string
	Link        *string // deduplication key when present
	ReadAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Read reports whether the entry has been marked read.
func (e Entry) Read() bool {
	return e.ReadAt != nil
}
