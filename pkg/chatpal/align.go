package chatpal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"
)

// MessageHit is one aligned message result.
type MessageHit struct {
	ID           string                 `json:"id"`
	Room         string                 `json:"room"`
	User         string                 `json:"user"`
	Text         string                 `json:"text"`
	Created      time.Time              `json:"created"`
	Date         string                 `json:"date"`
	Time         string                 `json:"time"`
	UserData     *platform.UserInfo     `json:"user_data,omitempty"`
	Subscription *platform.Subscription `json:"subscription,omitempty"`
}

// MessageResults is one aligned page of message hits.
type MessageResults struct {
	NumFound int          `json:"num_found"`
	Start    int          `json:"start"`
	PageSize int          `json:"page_size"`
	Docs     []MessageHit `json:"docs"`
}

// UserHit is one aligned user result.
type UserHit struct {
	ID       string             `json:"id"`
	UserData *platform.UserInfo `json:"user_data,omitempty"`
}

// UserResults is one aligned page of user hits.
type UserResults struct {
	NumFound int       `json:"num_found"`
	Docs     []UserHit `json:"docs"`
}

// GroupedResults is the aligned shape of an all-type search.
type GroupedResults struct {
	Users    *UserResults    `json:"users,omitempty"`
	Messages *MessageResults `json:"messages,omitempty"`
}

// Numbers holds the per-type document counts for the statistics view.
type Numbers struct {
	Messages int `json:"messages"`
	Users    int `json:"users"`
}

// ChartPoint is one day of the indexing histogram.
type ChartPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Statistics is the statistics view. When the backend is disabled only
// Enabled is populated.
type Statistics struct {
	Enabled bool         `json:"enabled"`
	Numbers *Numbers     `json:"numbers,omitempty"`
	Chart   []ChartPoint `json:"chart,omitempty"`
	Running bool         `json:"running,omitempty"`
}

// Aligner post-processes raw engine responses into the caller-facing shape:
// highlight selection, id unprefixing, date formatting, grouping unpack and
// attachment of user display info and the caller's subscription record.
type Aligner struct {
	language   string
	dateFormat string
	timeFormat string
	users      platform.UserStore
	subs       platform.SubscriptionStore
}

// NewAligner builds an aligner resolving display metadata through the given
// stores. dateFormat and timeFormat are Go time layouts.
func NewAligner(lang, dateFormat, timeFormat string, users platform.UserStore, subs platform.SubscriptionStore) *Aligner {
	return &Aligner{
		language:   lang,
		dateFormat: dateFormat,
		timeFormat: timeFormat,
		users:      users,
		subs:       subs,
	}
}

// AlignMessages aligns a message-query response for the given caller.
// pageSize is echoed into the result for the caller's pagination.
func (a *Aligner) AlignMessages(ctx context.Context, userID string, raw *RawResponse, pageSize int) (*MessageResults, error) {
	docs, err := a.alignMessageList(ctx, userID, raw.Response, raw.Highlighting)
	if err != nil {
		return nil, err
	}
	return &MessageResults{
		NumFound: raw.Response.NumFound,
		Start:    raw.Response.Start,
		PageSize: pageSize,
		Docs:     docs,
	}, nil
}

func (a *Aligner) alignMessageList(ctx context.Context, userID string, list RawDocList, highlighting map[string]map[string][]string) ([]MessageHit, error) {
	textField := TextField(a.language)
	hits := make([]MessageHit, 0, len(list.Docs))

	for _, doc := range list.Docs {
		rawID := doc.stringField("id")
		hit := MessageHit{
			ID:   UnprefixID(rawID),
			Room: doc.stringField("room"),
			User: doc.stringField("user"),
			Text: doc.stringField(textField),
		}

		// Highlighted body wins over the stored one when the engine
		// produced a snippet for this hit.
		if fields, ok := highlighting[rawID]; ok {
			if snippets := fields[textField]; len(snippets) > 0 {
				hit.Text = snippets[0]
			}
		}

		if created, err := time.Parse(time.RFC3339, doc.stringField("created")); err == nil {
			hit.Created = created
			hit.Date = created.Format(a.dateFormat)
			hit.Time = created.Format(a.timeFormat)
		}

		if hit.User != "" {
			info, err := a.users.UserInfo(ctx, hit.User)
			if err != nil {
				return nil, fmt.Errorf("resolving user %s: %w", hit.User, err)
			}
			hit.UserData = info
		}

		if hit.Room != "" {
			// A nil subscription here means the room filter let through a
			// room the caller cannot see, which is an access-control bug
			// upstream, not a normal case. The hit is kept with the field
			// absent.
			sub, err := a.subs.Subscription(ctx, userID, hit.Room)
			if err != nil {
				return nil, fmt.Errorf("resolving subscription for room %s: %w", hit.Room, err)
			}
			hit.Subscription = sub
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

// AlignUsers aligns a user doc list: id unprefixed and mapped back to display
// info, every other raw field discarded.
func (a *Aligner) AlignUsers(ctx context.Context, list RawDocList) (*UserResults, error) {
	hits := make([]UserHit, 0, len(list.Docs))
	for _, doc := range list.Docs {
		id := UnprefixID(doc.stringField("id"))
		info, err := a.users.UserInfo(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving user %s: %w", id, err)
		}
		hits = append(hits, UserHit{ID: id, UserData: info})
	}
	return &UserResults{NumFound: list.NumFound, Docs: hits}, nil
}

// AlignGrouped unpacks an all-type response: one aligned list per known type
// tag. Unknown group values are ignored.
func (a *Aligner) AlignGrouped(ctx context.Context, userID string, raw *RawResponse, pageSize int) (*GroupedResults, error) {
	result := &GroupedResults{}

	typeGroups, ok := raw.Grouped["type"]
	if !ok {
		return result, nil
	}

	for _, group := range typeGroups.Groups {
		switch group.GroupValue {
		case DocTypeUser:
			users, err := a.AlignUsers(ctx, group.DocList)
			if err != nil {
				return nil, err
			}
			result.Users = users
		case DocTypeMessage:
			docs, err := a.alignMessageList(ctx, userID, group.DocList, raw.Highlighting)
			if err != nil {
				return nil, err
			}
			result.Messages = &MessageResults{
				NumFound: group.DocList.NumFound,
				Start:    group.DocList.Start,
				PageSize: pageSize,
				Docs:     docs,
			}
		}
	}

	return result, nil
}

// AlignStatistics converts a facet response into the statistics view. Missing
// type buckets are zero-filled; the date-range facet becomes an ordered
// (date, count) list.
func (a *Aligner) AlignStatistics(raw *RawFacetResponse, running bool) *Statistics {
	stats := &Statistics{
		Enabled: true,
		Numbers: &Numbers{},
		Running: running,
	}

	for name, count := range facetPairs(raw.FacetCounts.FacetFields["type"]) {
		switch name {
		case DocTypeMessage:
			stats.Numbers.Messages = count
		case DocTypeUser:
			stats.Numbers.Users = count
		}
	}

	if created, ok := raw.FacetCounts.FacetRanges["created"]; ok {
		for date, count := range facetPairs(created.Counts) {
			stats.Chart = append(stats.Chart, ChartPoint{Date: date, Count: count})
		}
		sort.Slice(stats.Chart, func(i, j int) bool {
			return stats.Chart[i].Date < stats.Chart[j].Date
		})
	}

	return stats
}

// facetPairs decodes the engine's flat [value, count, value, count, ...]
// facet arrays.
func facetPairs(raw []any) map[string]int {
	pairs := make(map[string]int, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		name, ok := raw[i].(string)
		if !ok {
			continue
		}
		count, ok := raw[i+1].(float64)
		if !ok {
			continue
		}
		pairs[name] = int(count)
	}
	return pairs
}
