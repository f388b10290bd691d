package db

import (
	"database/sql"
	"errors"
	"time"

	"preader/models"
)

var ErrNotFound = errors.New("not found")

// DB handles all reader storage on a single SQLite connection
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the SQLite database at path. Migrate must have been run.
func Open(path string) (*DB, error) {
	conn, err := connection(path)
	if err != nil {
		return nil, err
	}
	return &DB{db: conn, now: time.Now}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

const feedColumns = "id, title, description, site_url, feed_url, disabled, subscribed, last_checked, next_checked, check_frequency, error_count, etag, last_modified, has_new_entries, created, modified"

const entryColumns = "id, feed_id, entry_id, link, title, author, content, published, updated, status"

type scanner interface {
	Scan(dest ...any) error
}

func scanFeed(row scanner) (models.Feed, error) {
	var feed models.Feed
	var lastChecked, nextChecked, lastModified sql.NullInt64
	var disabled, subscribed, hasNewEntries int
	var created, modified int64

	err := row.Scan(
		&feed.Id, &feed.Title, &feed.Description, &feed.SiteUrl, &feed.FeedUrl,
		&disabled, &subscribed, &lastChecked, &nextChecked, &feed.CheckFrequency,
		&feed.ErrorCount, &feed.Etag, &lastModified, &hasNewEntries, &created, &modified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return feed, ErrNotFound
	}
	if err != nil {
		return feed, err
	}

	feed.Disabled = disabled != 0
	feed.Subscribed = subscribed != 0
	feed.HasNewEntries = hasNewEntries != 0
	feed.LastChecked = fromNullUnix(lastChecked)
	feed.NextChecked = fromNullUnix(nextChecked)
	feed.LastModified = fromNullUnix(lastModified)
	feed.Created = time.Unix(created, 0)
	feed.Modified = time.Unix(modified, 0)
	return feed, nil
}

func scanEntry(row scanner) (models.Entry, error) {
	var (
		entry              models.Entry
		published, updated int64
	)
	err := row.Scan(
		&entry.Id, &entry.FeedId, &entry.EntryId, &entry.Link, &entry.Title,
		&entry.Author, &entry.Content, &published, &updated, &entry.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, ErrNotFound
	}
	if err != nil {
		return entry, err
	}
	entry.Published = time.Unix(published, 0)
	entry.Updated = time.Unix(updated, 0)
	return entry, nil
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func toNullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
