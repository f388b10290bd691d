package feeds_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"preader/config"
	"preader/db"
	"preader/feeds"
	"preader/models"
	"preader/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssHead = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example &amp; Co</title>
    <link>http://example.com/</link>
    <description>About</description>
`

const rssTail = `  </channel>
</rss>`

const itemThird = `    <item>
      <title>Third</title>
      <link>http://example.com/3</link>
      <guid>3</guid>
      <pubDate>Tue, 14 Nov 2023 23:00:00 GMT</pubDate>
      <description>three</description>
    </item>
`

const itemSecond = `    <item>
      <title>Second &lt;b&gt;bold&lt;/b&gt;</title>
      <link>http://example.com/2</link>
      <guid>2</guid>
      <pubDate>Tue, 14 Nov 2023 22:00:00 GMT</pubDate>
      <description>&lt;p&gt;two&lt;/p&gt;&lt;script&gt;alert(1)&lt;/script&gt;</description>
    </item>
`

const itemFirst = `    <item>
      <title>First</title>
      <link>http://example.com/1</link>
      <guid>1</guid>
      <pubDate>Tue, 14 Nov 2023 21:00:00 GMT</pubDate>
    </item>
`

func rss(items ...string) string {
	return rssHead + strings.Join(items, "") + rssTail
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

type testClock struct {
	now atomic.Int64
}

func newClock() *testClock {
	c := &testClock{}
	c.now.Store(time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC).Unix())
	return c
}

func (c *testClock) Now() time.Time {
	return time.Unix(c.now.Load(), 0).UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.now.Add(int64(d / time.Second))
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(path))
	database, err := db.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func subscribedFeed(t *testing.T, database *db.DB, url string) models.Feed {
	t.Helper()
	ctx := context.Background()
	feed, _, err := database.GetOrCreateFeed(ctx, url, "no title yet")
	require.NoError(t, err)
	_, err = database.Subscribe(ctx, feed.Id)
	require.NoError(t, err)
	feed, err = database.FeedByID(ctx, feed.Id)
	require.NoError(t, err)
	return feed
}

func newUpdater(database *db.DB, clock *testClock) *feeds.Updater {
	return feeds.NewUpdater(database, config.Default().Reader, feeds.WithClock(clock.Now))
}

func TestUpdateStoresEntries(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss(itemSecond, itemFirst))
	}))
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL)
	updater := newUpdater(database, clock)

	summary, err := updater.Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, feeds.Summary{Checked: 1, NewEntries: 2}, summary)

	stored, err := database.FeedByID(ctx, feed.Id)
	require.NoError(t, err)
	assert.Equal(t, "Example & Co", stored.Title)
	assert.Equal(t, "About", stored.Description)
	assert.Equal(t, "http://example.com/", stored.SiteUrl)
	assert.Equal(t, `"v1"`, stored.Etag)
	assert.Equal(t, 0, stored.ErrorCount)
	assert.True(t, stored.HasNewEntries)
	require.NotNil(t, stored.NextChecked)
	assert.True(t, clock.Now().Add(time.Hour).Equal(*stored.NextChecked))

	entries, err := database.Entries(ctx, query.FeedFilter{FeedId: feed.Id})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Second bold", entries[0].Title)
	assert.Equal(t, "<p>two</p>", entries[0].Content)
	assert.Equal(t, sha1Hex("2"), entries[0].EntryId)
	assert.Equal(t, "http://example.com/2", entries[0].Link)
	assert.Equal(t, "no author", entries[0].Author)
	assert.Equal(t, models.StatusUnread, entries[0].Status)
	assert.Equal(t, "No summary.", entries[1].Content)

	logs, err := database.FeedLogs(ctx, feed.Id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.Equal(t, 2, logs[0].Entries)
	assert.Contains(t, logs[0].Notes, "2 new entries")
	assert.Contains(t, logs[0].Headers, `User-Agent="PReader 0.1"`)
	assert.Contains(t, logs[0].Headers, `Etag="\"v1\""`)

	// not due yet
	summary, err = updater.Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Checked)

	clock.Advance(2 * time.Hour)
	summary, err = updater.Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, feeds.Summary{Checked: 1}, summary)

	logs, err = database.FeedLogs(ctx, feed.Id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, http.StatusNotModified, logs[0].StatusCode)
	assert.Equal(t, "not modified", logs[0].Notes)
}

func TestUpdateOnlyStoresNewerEntries(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	var body atomic.Value
	body.Store(rss(itemSecond, itemFirst))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body.Load().(string))
	}))
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL)
	updater := newUpdater(database, clock)

	_, err := updater.Update(ctx, 0)
	require.NoError(t, err)

	body.Store(rss(itemThird, itemSecond, itemFirst))
	clock.Advance(2 * time.Hour)
	summary, err := updater.Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewEntries)

	entries, err := database.Entries(ctx, query.FeedFilter{FeedId: feed.Id})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Third", entries[0].Title)
}

func TestUpdateRecordsErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantNote   string
	}{
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       "oops",
			wantStatus: http.StatusInternalServerError,
			wantNote:   "error: status 500",
		},
		{
			name:       "not found",
			status:     http.StatusNotFound,
			wantStatus: http.StatusNotFound,
			wantNote:   "error: status 404",
		},
		{
			name:       "not a feed",
			status:     http.StatusOK,
			body:       "this is not a feed",
			wantStatus: http.StatusOK,
			wantNote:   "parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			database := openDB(t)
			clock := newClock()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			feed := subscribedFeed(t, database, server.URL)
			summary, err := newUpdater(database, clock).Update(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, feeds.Summary{Checked: 1, Failed: 1}, summary)

			stored, err := database.FeedByID(ctx, feed.Id)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.ErrorCount)
			assert.False(t, stored.Disabled)
			require.NotNil(t, stored.NextChecked)
			assert.True(t, clock.Now().Add(time.Hour).Equal(*stored.NextChecked))

			logs, err := database.FeedLogs(ctx, feed.Id, 10)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantStatus, logs[0].StatusCode)
			assert.Contains(t, logs[0].Notes, tt.wantNote)
		})
	}
}

func TestUpdateDisablesAtMaxErrors(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL)
	feed.ErrorCount = config.Default().Reader.MaxErrors - 1
	require.NoError(t, database.SaveFeed(ctx, &feed))

	summary, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, feeds.Summary{Checked: 1, Failed: 1, Disabled: 1}, summary)

	stored, err := database.FeedByID(ctx, feed.Id)
	require.NoError(t, err)
	assert.True(t, stored.Disabled)

	due, err := database.DueFeeds(ctx, clock.Now().Add(48*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUpdateConnectionError(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	feed := subscribedFeed(t, database, url)
	summary, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	logs, err := database.FeedLogs(ctx, feed.Id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 0, logs[0].StatusCode)
	assert.True(t, strings.HasPrefix(logs[0].Notes, "connection error"), logs[0].Notes)
}

func TestUpdateTooManyRedirects(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL+"/loop")
	_, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(config.Default().Reader.MaxRedirects+1), hits.Load())

	logs, err := database.FeedLogs(ctx, feed.Id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "too many redirects", logs[0].Notes)
}

func TestUpdateFollowsPermanentRedirect(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss(itemFirst))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL+"/old")
	_, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)

	stored, err := database.FeedByID(ctx, feed.Id)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", stored.FeedUrl)
	assert.False(t, stored.Disabled)

	logs, err := database.FeedLogs(ctx, feed.Id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Notes, "feed moved from")
}

func TestUpdateDisablesFeedMovedToExistingFeed(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss(itemFirst))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	feed := subscribedFeed(t, database, server.URL+"/old")
	_, _, err := database.GetOrCreateFeed(ctx, server.URL+"/new", "existing")
	require.NoError(t, err)

	summary, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Disabled)

	stored, err := database.FeedByID(ctx, feed.Id)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/old", stored.FeedUrl)
	assert.True(t, stored.Disabled)
}

func TestUpdateManyFeeds(t *testing.T) {
	ctx := context.Background()
	database := openDB(t)
	clock := newClock()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss(itemSecond, itemFirst))
	}))
	defer server.Close()

	for i := range 6 {
		subscribedFeed(t, database, fmt.Sprintf("%s/feed/%d", server.URL, i))
	}
	// not subscribed, never checked
	_, _, err := database.GetOrCreateFeed(ctx, server.URL+"/other", "other")
	require.NoError(t, err)

	summary, err := newUpdater(database, clock).Update(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, feeds.Summary{Checked: 6, NewEntries: 12}, summary)
	assert.Equal(t, int32(6), hits.Load())

	hits.Store(0)
	clock.Advance(2 * time.Hour)
	summary, err = newUpdater(database, clock).Update(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, int32(2), hits.Load())
}
