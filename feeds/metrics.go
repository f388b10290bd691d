package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preader_feed_checks_total",
		Help: "Feed checks by result",
	}, []string{"result"})
	feedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preader_feed_errors_total",
		Help: "Feed checks that incremented a feed's error count",
	})
	feedsDisabled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preader_feeds_disabled_total",
		Help: "Feeds disabled by the updater",
	})
	newEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preader_new_entries_total",
		Help: "Entries found by the updater",
	})
	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "preader_feed_check_duration_seconds",
		Help:    "Duration of a feed check",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})
)

// Check results
const (
	resultOK          = "ok"
	resultNotModified = "not_modified"
	resultParseError  = "parse_error"
	resultHTTPError   = "http_error"
	resultFetchError  = "fetch_error"
)
