// Package platform defines the read-side contract against the hosting chat
// platform: messages, users, rooms and room subscriptions. The search gateway
// only needs simple time-range and equality lookups from it, so the contract
// is a handful of narrow interfaces; a SQLite-backed implementation lives in
// sqlite.go for deployments where chatpal-search keeps its own copy of the
// platform data (fed by the inbound event hooks).
package platform

import (
	"context"
	"time"
)

// Message is a single chat message as the hosting platform stores it.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a platform user record.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Emails    []string  `json:"emails,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserInfo is the display subset of a user attached to search results.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Room is a chat room (channel, private group or direct-message room).
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "c" channel, "p" private, "d" direct
}

// Subscription records that a user is a member of a room. Its presence is
// what makes the room's messages visible to that user.
type Subscription struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	RoomName string `json:"room_name"`
	RoomType string `json:"room_type"`
}

// MessageStore is the message history lookup the backfill walks.
type MessageStore interface {
	// MessagesBetween returns messages with start < created_at <= end,
	// oldest first, paged by limit/offset.
	MessagesBetween(ctx context.Context, start, end time.Time, limit, offset int) ([]Message, error)

	// HasMessagesBefore reports whether any message older than t exists.
	HasMessagesBefore(ctx context.Context, t time.Time) (bool, error)
}

// UserStore lists users for the backfill user pass and resolves display info.
type UserStore interface {
	Users(ctx context.Context, limit, offset int) ([]User, error)
	UserInfo(ctx context.Context, id string) (*UserInfo, error)
}

// SubscriptionStore resolves room visibility for a querying user.
type SubscriptionStore interface {
	// SubscribedRoomIDs returns the ids of all rooms the user is subscribed
	// to. An empty result means the user may see nothing.
	SubscribedRoomIDs(ctx context.Context, userID string) ([]string, error)

	// Subscription returns the user's subscription record for a room, or
	// nil when the user is not subscribed.
	Subscription(ctx context.Context, userID, roomID string) (*Subscription, error)

	Room(ctx context.Context, id string) (*Room, error)
}

// Store bundles everything the search gateway reads from the platform.
type Store interface {
	MessageStore
	UserStore
	SubscriptionStore
}
