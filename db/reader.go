package db

import (
	"context"
	"fmt"
	"time"

	"preader/models"
	"preader/query"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Feeds returns the feeds matching all filters, most recently modified first
func (db *DB) Feeds(ctx context.Context, filters ...query.FilterStrategy) ([]models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(feedColumns).From("feeds")
	for _, filter := range filters {
		filter.ApplyFilter(sb)
	}
	sb.OrderBy("modified DESC", "created DESC", "id DESC")

	return db.queryFeeds(ctx, sb)
}

// SubscribedFeeds returns the enabled feeds the reader is subscribed to
func (db *DB) SubscribedFeeds(ctx context.Context) ([]models.Feed, error) {
	return db.Feeds(ctx, query.SubscribedFilter{})
}

// DueFeeds returns at most limit subscribed feeds that need checking at now
func (db *DB) DueFeeds(ctx context.Context, now time.Time, limit int) ([]models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(feedColumns).From("feeds")
	query.SubscribedFilter{}.ApplyFilter(sb)
	query.DueFilter{Now: now}.ApplyFilter(sb)
	sb.OrderBy("next_checked ASC", "id ASC")
	sb.Limit(limit)

	return db.queryFeeds(ctx, sb)
}

func (db *DB) queryFeeds(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]models.Feed, error) {
	sql, args := sb.Build()
	log.WithFields(log.Fields{
		"sql":  sql,
		"args": args,
	}).Debug("Querying feeds")

	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	feeds := []models.Feed{}
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

func (db *DB) FeedByID(ctx context.Context, id int64) (models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select(feedColumns).From("feeds").Where(sb.Equal("id", id)).Build()
	return scanFeed(db.db.QueryRowContext(ctx, sql, args...))
}

func (db *DB) FeedByURL(ctx context.Context, feedUrl string) (models.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select(feedColumns).From("feeds").Where(sb.Equal("feed_url", feedUrl)).Build()
	return scanFeed(db.db.QueryRowContext(ctx, sql, args...))
}

// Entries returns the entries matching all filters, newest first
func (db *DB) Entries(ctx context.Context, filters ...query.FilterStrategy) ([]models.Entry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns).From("entries")
	for _, filter := range filters {
		filter.ApplyFilter(sb)
	}
	sb.OrderBy("published DESC", "updated DESC", "id DESC")

	sql, args := sb.Build()
	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// EntryByID returns the entry with id belonging to feedId
func (db *DB) EntryByID(ctx context.Context, feedId, id int64) (models.Entry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select(entryColumns).From("entries").
		Where(sb.Equal("id", id), sb.Equal("feed_id", feedId)).
		Build()
	return scanEntry(db.db.QueryRowContext(ctx, sql, args...))
}

// LatestEntry returns the most recently published entry of a feed, or
// ErrNotFound when the feed has none.
func (db *DB) LatestEntry(ctx context.Context, feedId int64) (models.Entry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select(entryColumns).From("entries").
		Where(sb.Equal("feed_id", feedId)).
		OrderBy("published DESC", "id DESC").
		Limit(1).
		Build()
	return scanEntry(db.db.QueryRowContext(ctx, sql, args...))
}

// FeedLogs returns the latest limit logs of a feed
func (db *DB) FeedLogs(ctx context.Context, feedId int64, limit int) ([]models.FeedLog, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sql, args := sb.Select("id", "feed_id", "status_code", "headers", "notes", "duration", "created", "entries").
		From("feed_logs").
		Where(sb.Equal("feed_id", feedId)).
		OrderBy("created DESC", "id DESC").
		Limit(limit).
		Build()

	rows, err := db.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	logs := []models.FeedLog{}
	for rows.Next() {
		var (
			feedLog    models.FeedLog
			statusCode *int64
			duration   int64
			created    int64
		)
		if err := rows.Scan(&feedLog.Id, &feedLog.FeedId, &statusCode, &feedLog.Headers,
			&feedLog.Notes, &duration, &created, &feedLog.Entries); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if statusCode != nil {
			feedLog.StatusCode = int(*statusCode)
		}
		feedLog.Duration = time.Duration(duration)
		feedLog.Created = time.Unix(created, 0)
		logs = append(logs, feedLog)
	}
	return logs, rows.Err()
}
