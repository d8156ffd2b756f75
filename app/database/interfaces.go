package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced feed or entry id is absent.
var ErrNotFound = errors.New("not found")

type FeedRepository interface {
	CreateFeed(feed Feed) (int64, error)
	ListFeeds() ([]Feed, error)
	GetFeed(feedID int64) (Feed, error)
	GetFeedCount() (int, error)

	TouchRefreshedAt(feedID int64, refreshedAt time.Time) error
	DeleteFeed(feedID int64) error
}

type EntryRepository interface {
	ListEntries(feedID int64, mode ReadMode) ([]Entry, error)
	ListEntryLinks(feedID int64, mode ReadMode) (map[string]struct{}, error)
	GetEntry(entryID int64) (Entry, error)

	BulkInsertEntries(feedID int64, entries []Entry) (int, error)
	SetReadAt(entryID int64, readAt *time.Time) error
	UpdateEntryContent(entryID int64, content string) error
}
