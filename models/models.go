package models

import "time"

// Check frequencies in hours
const (
	CheckHourly       = 1
	CheckTwiceDaily   = 12
	CheckDaily        = 24
	DefaultCheckHours = CheckHourly
)

// Entry statuses
const (
	StatusUnread = "u"
	StatusRead   = "r"
	StatusSaved  = "s"
)

// ValidStatus reports whether status is a known entry status
func ValidStatus(status string) bool {
	switch status {
	case StatusUnread, StatusRead, StatusSaved:
		return true
	}
	return false
}

// Feed is a subscribed (or discovered) syndication feed
type Feed struct {
	Id             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	SiteUrl        string     `json:"siteUrl,omitempty"`
	FeedUrl        string     `json:"feedUrl"`
	Disabled       bool       `json:"disabled"`
	Subscribed     bool       `json:"subscribed"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
	NextChecked    *time.Time `json:"nextChecked,omitempty"`
	CheckFrequency int        `json:"checkFrequency"`
	ErrorCount     int        `json:"errorCount"`
	Etag           string     `json:"-"`
	LastModified   *time.Time `json:"-"`
	HasNewEntries  bool       `json:"hasNewEntries"`
	Created        time.Time  `json:"created"`
	Modified       time.Time  `json:"modified"`
}

// IncrementErrorCount bumps the error count and disables the feed once
// maxErrors is reached.
func (f *Feed) IncrementErrorCount(maxErrors int) {
	f.ErrorCount++
	if f.ErrorCount >= maxErrors {
		f.Disabled = true
	}
}

func (f *Feed) ResetErrorCount() {
	f.ErrorCount = 0
	f.Disabled = false
}

// Entry is a single item of a feed
type Entry struct {
	Id        int64     `json:"id"`
	FeedId    int64     `json:"feed"`
	EntryId   string    `json:"entryId"`
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
	Status    string    `json:"status"`
}

// FeedLog records the outcome of one feed check
type FeedLog struct {
	Id         int64         `json:"id"`
	FeedId     int64         `json:"feed"`
	StatusCode int           `json:"statusCode,omitempty"`
	Headers    string        `json:"headers"`
	Notes      string        `json:"notes"`
	Duration   time.Duration `json:"duration"`
	Created    time.Time     `json:"created"`
	Entries    int           `json:"entries"`
}

// FeedItem is one entry of the feed list as seen by a client of the
// feed list endpoint.
type FeedItem struct {
	PK    string
	Title string
}

// SerializedFeed is the wire shape of a feed in the feed list endpoint
type SerializedFeed struct {
	Model  string               `json:"model"`
	PK     int64                `json:"pk"`
	Fields SerializedFeedFields `json:"fields"`
}

type SerializedFeedFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SerializeFeed converts a feed to its feed list representation
func SerializeFeed(feed Feed) SerializedFeed {
	return SerializedFeed{
		Model: "reader.feed",
		PK:    feed.Id,
		Fields: SerializedFeedFields{
			Title:       feed.Title,
			Description: feed.Description,
		},
	}
}
