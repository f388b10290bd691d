package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"preader/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>http://example.com/</link>
    <item>
      <title>Hello</title>
      <link>http://example.com/hello</link>
      <guid>hello</guid>
      <pubDate>Tue, 14 Nov 2023 22:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

// run executes the app with args against the database at path and returns
// what it printed
func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := RootApp()
	app.Writer = &out
	app.ErrWriter = &out
	full := append([]string{"preader", "--database", path, "--config", filepath.Join(t.TempDir(), "missing.toml")}, args...)
	err := app.Run(full)
	return out.String(), err
}

func newDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preader.db")
	_, err := run(t, path, "migrate")
	require.NoError(t, err)
	return path
}

func site(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><link type="application/rss+xml" href="/rss.xml"></head><body></body></html>`)
	})
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFeedIds(t *testing.T) {
	parse := func(args ...string) ([]int64, error) {
		return feedIds(argsOf(args))
	}

	ids, err := parse("1", "20")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 20}, ids)

	_, err = parse()
	assert.Error(t, err)
	_, err = parse("x")
	assert.Error(t, err)
	_, err = parse("0")
	assert.Error(t, err)
}

type argsOf []string

var _ cli.Args = argsOf{}

func (a argsOf) Get(n int) string {
	if n < len(a) {
		return a[n]
	}
	return ""
}
func (a argsOf) First() string   { return a.Get(0) }
func (a argsOf) Tail() []string  { return a[min(1, len(a)):] }
func (a argsOf) Len() int        { return len(a) }
func (a argsOf) Present() bool   { return len(a) > 0 }
func (a argsOf) Slice() []string { return a }

func TestMigrateAndRollback(t *testing.T) {
	path := newDatabase(t)
	out, err := run(t, path, "rollback")
	require.NoError(t, err)
	assert.Contains(t, out, "Database configured:")
	_, err = run(t, path, "migrate")
	require.NoError(t, err)
}

func TestAddUpdateAndList(t *testing.T) {
	path := newDatabase(t)
	server := site(t)

	out, err := run(t, path, "add", "--yes", server.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscribed to "+server.URL+"/rss.xml")

	out, err = run(t, path, "add", "--yes", server.URL+"/rss.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "Already subscribed to "+server.URL+"/rss.xml")

	out, err = run(t, path, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 feeds: 1 new entries, 0 failed, 0 disabled")

	out, err = run(t, path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NEW")
	assert.Contains(t, out, "Example")
	assert.Contains(t, out, server.URL+"/rss.xml")

	out, err = run(t, path, "list", "1")
	require.NoError(t, err)
	assert.Contains(t, out, server.URL+"/rss.xml")
	assert.Regexp(t, `1\s+true\s+false\s+true\s+0\s+Example`, out)

	out, err = run(t, path, "list", "2")
	require.NoError(t, err)
	assert.NotContains(t, out, server.URL)

	out, err = run(t, path, "logs", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "200")
	assert.Contains(t, out, "1 new entries")

	_, err = run(t, path, "logs", "42")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = run(t, path, "logs", "1", "2")
	assert.Error(t, err)

	out, err = run(t, path, "unsubscribe", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Unsubscribed from feed 1")

	_, err = run(t, path, "unsubscribe", "42")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAddWithoutFeeds(t *testing.T) {
	path := newDatabase(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := run(t, path, "add", "--yes", server.URL)
	assert.ErrorContains(t, err, "no feed urls found")

	_, err = run(t, path, "add")
	assert.Error(t, err)
}

func TestAdminActions(t *testing.T) {
	path := newDatabase(t)
	server := site(t)
	_, err := run(t, path, "add", "--yes", server.URL+"/")
	require.NoError(t, err)

	for _, action := range []string{"force-update", "clear-errors", "disable", "enable"} {
		out, err := run(t, path, "admin", action, "1")
		require.NoError(t, err, action)
		assert.Contains(t, out, action+": 1 feeds updated")
	}

	_, err = run(t, path, "admin", "disable", "1")
	require.NoError(t, err)
	database, err := db.Open(path)
	require.NoError(t, err)
	defer database.Close()
	feed, err := database.FeedByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, feed.Disabled)

	_, err = run(t, path, "admin", "disable", "abc")
	assert.Error(t, err)
}

func TestTidy(t *testing.T) {
	path := newDatabase(t)
	out, err := run(t, path, "tidy", "--retention", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 feed logs older than 1h0m0s")
}

func TestRender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"pk":1,"fields":{"title":"One"}},{"pk":7,"fields":{"title":"Seven"}}]`)
	}))
	defer server.Close()
	path := newDatabase(t)

	out, err := run(t, path, "render", "--url", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `<ul id="feedList"><li><a title="One" id="feedLink_1" href="/f/1">One</a></li>`)

	out, err = run(t, path, "render", "--url", server.URL, "--ids")
	require.NoError(t, err)
	assert.Equal(t, "1\n7\n", out)

	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><ol id="feeds"></ol></body></html>`), 0o644))
	out, err = run(t, path, "render", "--url", server.URL, "--page", page, "--selector", "ol#feeds")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `<ol id="feeds"><li>`), out)

	_, err = run(t, path, "render", "--url", server.URL, "--page", page)
	assert.Error(t, err, "page has no ul#feedList")
}
