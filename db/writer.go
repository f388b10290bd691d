package db

import (
	"context"
	"errors"
	"fmt"

	"preader/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// GetOrCreateFeed returns the feed stored for feedUrl, creating it with title
// if it does not exist yet. created reports whether a row was inserted.
func (db *DB) GetOrCreateFeed(ctx context.Context, feedUrl, title string) (models.Feed, bool, error) {
	feed, err := db.FeedByURL(ctx, feedUrl)
	if err == nil {
		return feed, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return feed, false, err
	}

	now := db.now().Unix()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	sql, args := ib.InsertIgnoreInto("feeds").
		Cols("title", "feed_url", "check_frequency", "created", "modified").
		Values(models.Shorten(title), feedUrl, models.DefaultCheckHours, now, now).
		Build()

	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return feed, false, fmt.Errorf("insert error: %w", err)
	}
	inserted, _ := res.RowsAffected()

	feed, err = db.FeedByURL(ctx, feedUrl)
	if err != nil {
		return feed, false, err
	}

	log.WithFields(log.Fields{
		"id":      feed.Id,
		"url":     feedUrl,
		"created": inserted > 0,
	}).Info("Get or create feed")

	return feed, inserted > 0, nil
}

// SaveFeed writes every mutable column of feed and bumps its modified time
func (db *DB) SaveFeed(ctx context.Context, feed *models.Feed) error {
	feed.Modified = db.now()

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	sql, args := ub.Update("feeds").Set(
		ub.Assign("title", feed.Title),
		ub.Assign("description", feed.Description),
		ub.Assign("site_url", feed.SiteUrl),
		ub.Assign("feed_url", feed.FeedUrl),
		ub.Assign("disabled", boolInt(feed.Disabled)),
		ub.Assign("subscribed", boolInt(feed.Subscribed)),
		ub.Assign("last_checked", toNullUnix(feed.LastChecked)),
		ub.Assign("next_checked", toNullUnix(feed.NextChecked)),
		ub.Assign("check_frequency", feed.CheckFrequency),
		ub.Assign("error_count", feed.ErrorCount),
		ub.Assign("etag", feed.Etag),
		ub.Assign("last_modified", toNullUnix(feed.LastModified)),
		ub.Assign("has_new_entries", boolInt(feed.HasNewEntries)),
		ub.Assign("modified", feed.Modified.Unix()),
	).Where(ub.Equal("id", feed.Id)).Build()

	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe marks a feed as subscribed. It reports false when the feed was
// already subscribed.
func (db *DB) Subscribe(ctx context.Context, feedId int64) (bool, error) {
	feed, err := db.FeedByID(ctx, feedId)
	if err != nil {
		return false, err
	}
	if feed.Subscribed {
		return false, nil
	}

	feed.Subscribed = true
	if err := db.SaveFeed(ctx, &feed); err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"id": feedId, "url": feed.FeedUrl}).Info("Subscribed to feed")
	return true, nil
}

// Unsubscribe clears the subscription and resets the read state of the
// feed's entries.
func (db *DB) Unsubscribe(ctx context.Context, feedId int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	sql, args := ub.Update("feeds").
		Set(ub.Assign("subscribed", 0), ub.Assign("modified", db.now().Unix())).
		Where(ub.Equal("id", feedId)).
		Build()
	res, err := tx.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	eb := sqlbuilder.SQLite.NewUpdateBuilder()
	sql, args = eb.Update("entries").
		Set(eb.Assign("status", models.StatusUnread)).
		Where(eb.Equal("feed_id", feedId)).
		Build()
	if _, err := tx.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update error: %w", err)
	}

	log.WithFields(log.Fields{"id": feedId}).Info("Unsubscribed from feed")
	return tx.Commit()
}

// SetEntryStatus changes the read state of an entry
func (db *DB) SetEntryStatus(ctx context.Context, entryId int64, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("unknown entry status %q", status)
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	sql, args := ub.Update("entries").
		Set(ub.Assign("status", status)).
		Where(ub.Equal("id", entryId)).
		Build()
	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearNewEntries marks the new entries of a feed as seen
func (db *DB) ClearNewEntries(ctx context.Context, feedId int64) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	sql, args := ub.Update("feeds").
		Set(ub.Assign("has_new_entries", 0)).
		Where(ub.Equal("id", feedId)).
		Build()
	if _, err := db.db.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	return nil
}

// InsertFeedLog stores the outcome of a feed check
func (db *DB) InsertFeedLog(ctx context.Context, feedLog *models.FeedLog) error {
	if feedLog.Created.IsZero() {
		feedLog.Created = db.now()
	}

	var statusCode any
	if feedLog.StatusCode != 0 {
		statusCode = feedLog.StatusCode
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	sql, args := ib.InsertInto("feed_logs").
		Cols("feed_id", "status_code", "headers", "notes", "duration", "created", "entries").
		Values(feedLog.FeedId, statusCode, feedLog.Headers, feedLog.Notes,
			int64(feedLog.Duration), feedLog.Created.Unix(), feedLog.Entries).
		Build()

	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	feedLog.Id, _ = res.LastInsertId()
	return nil
}

// ForceUpdate schedules feeds for the next update run and drops their
// conditional GET state
func (db *DB) ForceUpdate(ctx context.Context, feedIds ...int64) (int64, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds").Set(
		ub.Assign("next_checked", db.now().Unix()),
		ub.Assign("etag", ""),
		ub.Assign("last_modified", nil),
	)
	return db.updateFeeds(ctx, ub, feedIds)
}

// ClearErrors resets the error count of feeds
func (db *DB) ClearErrors(ctx context.Context, feedIds ...int64) (int64, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds").Set(ub.Assign("error_count", 0))
	return db.updateFeeds(ctx, ub, feedIds)
}

// SetDisabled enables or disables feeds
func (db *DB) SetDisabled(ctx context.Context, disabled bool, feedIds ...int64) (int64, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds").Set(ub.Assign("disabled", boolInt(disabled)))
	return db.updateFeeds(ctx, ub, feedIds)
}

func (db *DB) updateFeeds(ctx context.Context, ub *sqlbuilder.UpdateBuilder, feedIds []int64) (int64, error) {
	if len(feedIds) == 0 {
		return 0, nil
	}
	ub.Where(ub.In("id", lo.ToAnySlice(feedIds)...))

	sql, args := ub.Build()
	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update error: %w", err)
	}
	return res.RowsAffected()
}

// EntryBuffer collects new entries and inserts them in bulk once max entries
// are pending. Close flushes the remainder.
type EntryBuffer struct {
	db      *DB
	max     int
	pending []models.Entry
}

func (db *DB) NewEntryBuffer(max int) *EntryBuffer {
	if max < 1 {
		max = 1
	}
	return &EntryBuffer{db: db, max: max}
}

func (b *EntryBuffer) Add(ctx context.Context, entry models.Entry) error {
	b.pending = append(b.pending, entry)
	if len(b.pending) >= b.max {
		return b.Flush(ctx)
	}
	return nil
}

// Flush inserts all pending entries. Entries already stored for the same
// feed are skipped.
func (b *EntryBuffer) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("entries").
		Cols("feed_id", "entry_id", "link", "title", "author", "content", "published", "updated", "status")
	for _, e := range b.pending {
		status := e.Status
		if status == "" {
			status = models.StatusUnread
		}
		ib.Values(e.FeedId, e.EntryId, e.Link, e.Title, e.Author, e.Content,
			e.Published.Unix(), e.Updated.Unix(), status)
	}

	sql, args := ib.Build()
	if _, err := b.db.db.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("bulk insert error: %w", err)
	}

	log.WithFields(log.Fields{"count": len(b.pending)}).Debug("Flushed entries")
	b.pending = b.pending[:0]
	return nil
}

func (b *EntryBuffer) Close(ctx context.Context) error {
	return b.Flush(ctx)
}
