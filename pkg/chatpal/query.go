package chatpal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// noRoomsSentinel is the room filter value used when the caller is subscribed
// to nothing. No real room carries this id, so the filter matches no message
// at all (fail-closed) instead of falling open to an unrestricted query.
const noRoomsSentinel = "__none__"

// QueryBuilder constructs the engine query strings. It is a pure value; all
// state comes in through the constructor or the call.
type QueryBuilder struct {
	language string
}

// NewQueryBuilder returns a builder targeting the language-tagged body field
// for lang.
func NewQueryBuilder(lang string) *QueryBuilder {
	return &QueryBuilder{language: lang}
}

// roomFilter expresses the caller's visible rooms as a disjunction. An empty
// set yields a filter matching nothing.
func roomFilter(rooms []string) string {
	if len(rooms) == 0 {
		return "room:(" + noRoomsSentinel + ")"
	}
	return "room:(" + strings.Join(rooms, " OR ") + ")"
}

// MessageQuery builds the message-only search. The text passes through
// verbatim, including when empty (the engine then typically matches
// everything, which is what browse-style queries rely on). Results are
// restricted to messages in the caller's visible rooms, with highlighting on
// the body field and a relevance boost of the language-tagged field over the
// generic fallback.
func (qb *QueryBuilder) MessageQuery(text string, page, pageSize int, visibleRooms []string) string {
	if page < 1 {
		page = 1
	}

	v := url.Values{}
	v.Set("q", text)
	v.Set("defType", "edismax")
	v.Set("qf", fmt.Sprintf("%s^2 text", TextField(qb.language)))
	v.Add("fq", "type:"+DocTypeMessage)
	v.Add("fq", roomFilter(visibleRooms))
	v.Set("hl", "true")
	v.Set("hl.fl", TextField(qb.language))
	v.Set("start", strconv.Itoa((page-1)*pageSize))
	v.Set("rows", strconv.Itoa(pageSize))
	return v.Encode()
}

// AllQuery builds the grouped all-type search: no type restriction, hits
// bucketed by type with users first (type sorts descending: "user" >
// "message"), relevance order within each bucket, each bucket capped at
// pageSize. The room filter is relaxed to always admit user documents, so
// user matches are never hidden by room visibility.
func (qb *QueryBuilder) AllQuery(text string, pageSize int, visibleRooms []string) string {
	v := url.Values{}
	v.Set("q", text)
	v.Set("defType", "edismax")
	v.Set("qf", fmt.Sprintf("%s^2 text user_username^2 user_name", TextField(qb.language)))
	v.Add("fq", "("+roomFilter(visibleRooms)+") OR type:"+DocTypeUser)
	v.Set("group", "true")
	v.Set("group.field", "type")
	v.Set("group.limit", strconv.Itoa(pageSize))
	v.Set("group.sort", "score desc")
	v.Set("sort", "type desc")
	v.Set("hl", "true")
	v.Set("hl.fl", TextField(qb.language))
	v.Set("rows", strconv.Itoa(pageSize))
	return v.Encode()
}

// StatsQuery builds the facet query behind the statistics view: per-type
// counts plus a per-day histogram of message creation over the last 30 days.
func (qb *QueryBuilder) StatsQuery() string {
	v := url.Values{}
	v.Set("q", "*:*")
	v.Set("rows", "0")
	v.Set("facet", "true")
	v.Set("facet.field", "type")
	v.Set("facet.range", "created")
	v.Set("facet.range.start", "NOW/DAY-30DAYS")
	v.Set("facet.range.end", "NOW/DAY+1DAY")
	v.Set("facet.range.gap", "+1DAY")
	return v.Encode()
}

// OldestIndexedQuery probes the trailing edge of the indexed region: the
// single oldest message document, by creation time. The backfill walk starts
// from its timestamp and moves backward.
func (qb *QueryBuilder) OldestIndexedQuery() string {
	v := url.Values{}
	v.Set("q", "type:"+DocTypeMessage)
	v.Set("sort", "created asc")
	v.Set("rows", "1")
	v.Set("fl", "id,created")
	return v.Encode()
}
