package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) CreateFeed(feed Feed) (int64, error) {
	now := time.Now().UTC()

	res, err := r.db.Exec(`
		INSERT INTO feeds (title, site_link, source_url, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, feed.Title, feed.SiteLink, feed.SourceURL, string(feed.Kind), now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get created feed id: %w", err)
	}

	return id, nil
}

// ListFeeds returns all feeds ordered by case-insensitive title ascending.
// Feeds without a title sort first (SQLite places NULL before any text).
func (r *feedRepository) ListFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, title, site_link, source_url, kind, refreshed_at, created_at, updated_at
		FROM feeds
		ORDER BY title COLLATE NOCASE ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeed(feedID int64) (Feed, error) {
	row := r.db.QueryRow(`
		SELECT id, title, site_link, source_url, kind, refreshed_at, created_at, updated_at
		FROM feeds
		WHERE id = ?
	`, feedID)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return Feed{}, fmt.Errorf("feed %d: %w", feedID, ErrNotFound)
	}
	if err != nil {
		return Feed{}, err
	}

	return feed, nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// TouchRefreshedAt records a successful fetch, whether or not it produced new
// entries.
func (r *feedRepository) TouchRefreshedAt(feedID int64, refreshedAt time.Time) error {
	res, err := r.db.Exec(`
		UPDATE feeds
		SET refreshed_at = ?, updated_at = ?
		WHERE id = ?
	`, refreshedAt.UTC(), time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to touch refreshed_at: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed %d: %w", feedID, ErrNotFound)
	}

	return nil
}

// DeleteFeed removes the feed and, through the foreign key cascade, all of its
// entries.
func (r *feedRepository) DeleteFeed(feedID int64) error {
	res, err := r.db.Exec("DELETE FROM feeds WHERE id = ?", feedID)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed %d: %w", feedID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (Feed, error) {
	var feed Feed
	var title, siteLink sql.NullString
	var kind string
	var refreshedAt sql.NullTime

	err := row.Scan(&feed.ID, &title, &siteLink, &feed.SourceURL, &kind,
		&refreshedAt, &feed.CreatedAt, &feed.UpdatedAt)
	if err == sql.ErrNoRows {
		return Feed{}, err
	}
	if err != nil {
		return Feed{}, fmt.Errorf("failed to scan feed row: %w", err)
	}

	feed.Kind, err = ParseFeedKind(kind)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to scan feed row: %w", err)
	}
	feed.Title = nullString(title)
	feed.SiteLink = nullString(siteLink)
	feed.RefreshedAt = nullTime(refreshedAt)

	return feed, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
