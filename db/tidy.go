package db

import (
	"context"
	"fmt"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes feed logs older than retention and returns how many were
// deleted
func (db *DB) Tidy(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := db.now().Add(-retention).Unix()
	deleteLogs := sb.SQLite.NewDeleteBuilder()
	sql, args := deleteLogs.DeleteFrom("feed_logs").Where(deleteLogs.LessThan("created", cutoff)).Build()

	log.WithFields(log.Fields{
		"sql":  sql,
		"args": args,
	}).Info("Tidying database")

	res, err := db.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}
