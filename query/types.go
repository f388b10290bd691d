package query

import (
	"time"

	"github.com/huandu/go-sqlbuilder"
)

// FilterStrategy adds WHERE conditions to a feeds or entries query
type FilterStrategy interface {
	ApplyFilter(sb *sqlbuilder.SelectBuilder)
}

// SubscribedFilter keeps subscribed, enabled feeds
type SubscribedFilter struct{}

func (f SubscribedFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Equal("subscribed", 1), sb.Equal("disabled", 0))
}

// DueFilter keeps feeds that were never checked or whose next check is at
// or before Now
type DueFilter struct {
	Now time.Time
}

func (f DueFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Or(
		sb.IsNull("next_checked"),
		sb.LessEqualThan("next_checked", f.Now.Unix()),
	))
}

// FeedFilter keeps entries of one feed
type FeedFilter struct {
	FeedId int64
}

func (f FeedFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Equal("feed_id", f.FeedId))
}

// StatusFilter keeps entries with the given status
type StatusFilter struct {
	Status string
}

func (f StatusFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	sb.Where(sb.Equal("status", f.Status))
}

// IdFilter keeps rows with one of the given ids
type IdFilter struct {
	Ids []int64
}

func (f IdFilter) ApplyFilter(sb *sqlbuilder.SelectBuilder) {
	if len(f.Ids) == 0 {
		sb.Where("1 = 0")
		return
	}
	ids := make([]interface{}, len(f.Ids))
	for i, id := range f.Ids {
		ids[i] = id
	}
	sb.Where(sb.In("id", ids...))
}

var _ FilterStrategy = SubscribedFilter{}
var _ FilterStrategy = DueFilter{}
var _ FilterStrategy = FeedFilter{}
var _ FilterStrategy = StatusFilter{}
var _ FilterStrategy = IdFilter{}
