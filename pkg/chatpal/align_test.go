package chatpal

import (
	"context"
	"testing"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"
)

func newTestAligner(store *fakeStore) *Aligner {
	return NewAligner("en", "2006-01-02", "15:04", store, store)
}

func messageRawResponse() *RawResponse {
	return &RawResponse{
		Response: RawDocList{
			NumFound: 1,
			Start:    0,
			Docs: []Document{{
				"id":      "m_42",
				"type":    "message",
				"room":    "R1",
				"user":    "u1",
				"text_en": "hello world",
				"created": "2024-05-01T12:30:00Z",
			}},
		},
	}
}

func TestAlignMessages(t *testing.T) {
	store := newFakeStore()
	store.users = []platform.User{{ID: "u1", Username: "alice", Name: "Alice"}}
	store.subs["caller"] = []string{"R1"}
	store.rooms["R1"] = platform.Room{ID: "R1", Name: "general", Type: "c"}

	res, err := newTestAligner(store).AlignMessages(context.Background(), "caller", messageRawResponse(), 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}

	if res.NumFound != 1 || len(res.Docs) != 1 {
		t.Fatalf("Expected one hit, got %+v", res)
	}
	doc := res.Docs[0]
	if doc.ID != "42" {
		t.Errorf("Expected unprefixed id 42, got %q", doc.ID)
	}
	if doc.Text != "hello world" {
		t.Errorf("Expected stored body, got %q", doc.Text)
	}
	if doc.Date != "2024-05-01" || doc.Time != "12:30" {
		t.Errorf("Expected formatted date strings, got %q %q", doc.Date, doc.Time)
	}
	if doc.UserData == nil || doc.UserData.Username != "alice" {
		t.Errorf("Expected user display info, got %+v", doc.UserData)
	}
	if doc.Subscription == nil || doc.Subscription.RoomName != "general" {
		t.Errorf("Expected caller's subscription record, got %+v", doc.Subscription)
	}
}

func TestAlignMessagesHighlightWins(t *testing.T) {
	store := newFakeStore()
	raw := messageRawResponse()
	raw.Highlighting = map[string]map[string][]string{
		"m_42": {"text_en": {"<em>hello</em> world"}},
	}

	res, err := newTestAligner(store).AlignMessages(context.Background(), "caller", raw, 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if res.Docs[0].Text != "<em>hello</em> world" {
		t.Errorf("Expected highlighted body, got %q", res.Docs[0].Text)
	}
}

func TestAlignMessagesNoSubscription(t *testing.T) {
	store := newFakeStore()

	res, err := newTestAligner(store).AlignMessages(context.Background(), "stranger", messageRawResponse(), 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if res.Docs[0].Subscription != nil {
		t.Errorf("Expected absent subscription for unsubscribed caller, got %+v", res.Docs[0].Subscription)
	}
}

func TestAlignUsers(t *testing.T) {
	store := newFakeStore()
	store.users = []platform.User{{ID: "7", Username: "bob", Name: "Bob"}}

	list := RawDocList{
		NumFound: 1,
		Docs: []Document{{
			"id":            "u_7",
			"type":          "user",
			"user_username": "bob",
		}},
	}

	res, err := newTestAligner(store).AlignUsers(context.Background(), list)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if len(res.Docs) != 1 || res.Docs[0].ID != "7" {
		t.Fatalf("Expected unprefixed user id, got %+v", res.Docs)
	}
	if res.Docs[0].UserData == nil || res.Docs[0].UserData.Username != "bob" {
		t.Errorf("Expected display info resolved from the store, got %+v", res.Docs[0].UserData)
	}
}

func TestAlignGrouped(t *testing.T) {
	store := newFakeStore()
	store.users = []platform.User{{ID: "u1", Username: "alice"}, {ID: "7", Username: "bob"}}

	raw := &RawResponse{
		Grouped: map[string]RawGroupField{
			"type": {
				Matches: 3,
				Groups: []RawGroup{
					{
						GroupValue: "user",
						DocList:    RawDocList{NumFound: 1, Docs: []Document{{"id": "u_7"}}},
					},
					{
						GroupValue: "message",
						DocList: RawDocList{NumFound: 1, Docs: []Document{{
							"id": "m_42", "room": "R1", "user": "u1",
							"text_en": "hi", "created": "2024-05-01T12:30:00Z",
						}}},
					},
					{
						GroupValue: "something-else",
						DocList:    RawDocList{NumFound: 1, Docs: []Document{{"id": "x_9"}}},
					},
				},
			},
		},
	}

	res, err := newTestAligner(store).AlignGrouped(context.Background(), "caller", raw, 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if res.Users == nil || len(res.Users.Docs) != 1 || res.Users.Docs[0].ID != "7" {
		t.Errorf("Expected one user hit, got %+v", res.Users)
	}
	if res.Messages == nil || len(res.Messages.Docs) != 1 || res.Messages.Docs[0].ID != "42" {
		t.Errorf("Expected one message hit, got %+v", res.Messages)
	}
}

func TestAlignGroupedNoGroups(t *testing.T) {
	store := newFakeStore()

	res, err := newTestAligner(store).AlignGrouped(context.Background(), "caller", &RawResponse{}, 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if res.Users != nil || res.Messages != nil {
		t.Errorf("Expected empty grouped result, got %+v", res)
	}
}

func TestAlignStatistics(t *testing.T) {
	var raw RawFacetResponse
	raw.FacetCounts.FacetFields = map[string][]any{
		"type": {"message", float64(120), "user", float64(7)},
	}
	raw.FacetCounts.FacetRanges = map[string]struct {
		Counts []any `json:"counts"`
	}{
		"created": {Counts: []any{
			"2024-05-02T00:00:00Z", float64(3),
			"2024-05-01T00:00:00Z", float64(5),
		}},
	}

	stats := newTestAligner(newFakeStore()).AlignStatistics(&raw, true)

	if !stats.Enabled || !stats.Running {
		t.Errorf("Expected enabled and running, got %+v", stats)
	}
	if stats.Numbers.Messages != 120 || stats.Numbers.Users != 7 {
		t.Errorf("Expected counts 120/7, got %+v", stats.Numbers)
	}
	if len(stats.Chart) != 2 || stats.Chart[0].Date != "2024-05-01T00:00:00Z" {
		t.Errorf("Expected chart ordered by date, got %+v", stats.Chart)
	}
}

func TestAlignStatisticsZeroFill(t *testing.T) {
	var raw RawFacetResponse
	raw.FacetCounts.FacetFields = map[string][]any{
		"type": {"message", float64(5)},
	}

	stats := newTestAligner(newFakeStore()).AlignStatistics(&raw, false)

	if stats.Numbers == nil || stats.Numbers.Users != 0 {
		t.Errorf("Expected zero-filled user bucket, got %+v", stats.Numbers)
	}
	if stats.Numbers.Messages != 5 {
		t.Errorf("Expected 5 messages, got %+v", stats.Numbers)
	}
}

// Alignment after a round trip through the mapper keeps the id stable.
func TestAlignRoundTrip(t *testing.T) {
	store := newFakeStore()
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	doc := MapMessage(platform.Message{
		ID: "42", RoomID: "R1", UserID: "u1", Text: "hello",
		CreatedAt: ts, UpdatedAt: ts,
	}, "en")

	raw := &RawResponse{Response: RawDocList{NumFound: 1, Docs: []Document{doc}}}
	res, err := newTestAligner(store).AlignMessages(context.Background(), "caller", raw, 10)
	if err != nil {
		t.Fatalf("Failed to align: %v", err)
	}
	if res.Docs[0].ID != "42" || res.Docs[0].Room != "R1" {
		t.Errorf("Expected id and room preserved through the round trip, got %+v", res.Docs[0])
	}
}
