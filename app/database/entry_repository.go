package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ EntryRepository = (*entryRepository)(nil)

type entryRepository struct {
	db *DB
}

func NewEntryRepository(db *DB) EntryRepository {
	return &entryRepository{db: db}
}

const entryColumns = `id, feed_id, title, author, published_at, summary, content, link, read_at, created_at, updated_at`

// ListEntries returns the feed's entries filtered by mode, ordered by
// published_at descending with insertion order as the tiebreak. Entries
// without a publication date sort after dated ones; real-world dates are too
// often absent or malformed to order by alone.
func (r *entryRepository) ListEntries(feedID int64, mode ReadMode) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM entries
		WHERE feed_id = ? %s
		ORDER BY published_at DESC, created_at DESC, id DESC
	`, entryColumns, readModeClause(mode))

	rows, err := r.db.Query(query, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

// ListEntryLinks returns the set of non-null entry links for a feed. The
// synchronization diff calls this with ReadModeAll so read entries are never
// re-inserted as new.
func (r *entryRepository) ListEntryLinks(feedID int64, mode ReadMode) (map[string]struct{}, error) {
	query := fmt.Sprintf(`
		SELECT link
		FROM entries
		WHERE feed_id = ? AND link IS NOT NULL %s
	`, readModeClause(mode))

	rows, err := r.db.Query(query, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan entry link: %w", err)
		}
		links[link] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry links: %w", err)
	}

	return links, nil
}

func (r *entryRepository) GetEntry(entryID int64) (Entry, error) {
	row := r.db.QueryRow(fmt.Sprintf(`
		SELECT %s
		FROM entries
		WHERE id = ?
	`, entryColumns), entryID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// BulkInsertEntries inserts the entries in one transaction and returns how
// many rows were actually written. Entries whose (feed_id, link) already
// exists are ignored rather than duplicated. An empty slice is a no-op.
func (r *entryRepository) BulkInsertEntries(feedID int64, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO entries (
			feed_id, title, author, published_at, summary, content, link, read_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, entry := range entries {
		res, err := stmt.Exec(feedID, entry.Title, entry.Author, utcTime(entry.PublishedAt),
			entry.Summary, entry.Content, entry.Link, utcTime(entry.ReadAt), now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert entry: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit entry inserts: %w", err)
	}

	return inserted, nil
}

// SetReadAt marks the entry read at the given time, or unread when readAt is
// nil.
func (r *entryRepository) SetReadAt(entryID int64, readAt *time.Time) error {
	res, err := r.db.Exec(`
		UPDATE entries
		SET read_at = ?, updated_at = ?
		WHERE id = ?
	`, utcTime(readAt), time.Now().UTC(), entryID)
	if err != nil {
		return fmt.Errorf("failed to set read_at: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
	}

	return nil
}

func (r *entryRepository) UpdateEntryContent(entryID int64, content string) error {
	res, err := r.db.Exec(`
		UPDATE entries
		SET content = ?, updated_at = ?
		WHERE id = ?
	`, content, time.Now().UTC(), entryID)
	if err != nil {
		return fmt.Errorf("failed to update entry content: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
	}

	return nil
}

func readModeClause(mode ReadMode) string {
	switch mode {
	case ShowUnread:
		return "AND read_at IS NULL"
	case ShowRead:
		return "AND read_at IS NOT NULL"
	default:
		return ""
	}
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var title, author, summary, content, link sql.NullString
	var publishedAt, readAt sql.NullTime

	err := row.Scan(&entry.ID, &entry.FeedID, &title, &author, &publishedAt,
		&summary, &content, &link, &readAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to scan entry row: %w", err)
	}

	entry.Title = nullString(title)
	entry.Author = nullString(author)
	entry.Summary = nullString(summary)
	entry.Content = nullString(content)
	entry.Link = nullString(link)
	entry.PublishedAt = nullTime(publishedAt)
	entry.ReadAt = nullTime(readAt)

	return entry, nil
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
