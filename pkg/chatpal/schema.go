// Package chatpal implements the indexing/query gateway: mapping platform
// records to engine documents, the Solr-style HTTP client, query construction
// with per-user access filtering, response alignment, the time-windowed
// backfill walk and the coordinating gateway facade.
package chatpal

import (
	"strings"
	"time"

	"github.com/assistify/chatpal-search/pkg/platform"
)

// Document type tags. Messages and users share one flat index namespace;
// the type field plus the id prefix keep them apart.
const (
	DocTypeMessage = "message"
	DocTypeUser    = "user"
)

// Id prefixes per document type.
const (
	messageIDPrefix = "m_"
	userIDPrefix    = "u_"
)

// Document is the flat schema the engine's update handler expects. The body
// field name is language-tagged (text_<lang>) so the engine can apply
// language-specific analysis, which is why this is a map rather than a struct.
type Document map[string]any

// MessageDocID returns the index id for a message.
func MessageDocID(id string) string {
	return messageIDPrefix + id
}

// UserDocID returns the index id for a user.
func UserDocID(id string) string {
	return userIDPrefix + id
}

// UnprefixID strips the type prefix from an index id. Unknown prefixes pass
// through unchanged.
func UnprefixID(id string) string {
	if s, ok := strings.CutPrefix(id, messageIDPrefix); ok {
		return s
	}
	if s, ok := strings.CutPrefix(id, userIDPrefix); ok {
		return s
	}
	return id
}

// TextField returns the language-tagged body field name.
func TextField(lang string) string {
	return "text_" + lang
}

// MapMessage converts a chat message into its index document. Re-mapping the
// same message yields the same document; indexing is an upsert by id, never a
// partial patch.
func MapMessage(m platform.Message, lang string) Document {
	return Document{
		"id":            MessageDocID(m.ID),
		"type":          DocTypeMessage,
		"room":          m.RoomID,
		"user":          m.UserID,
		"created":       m.CreatedAt.UTC().Format(time.RFC3339),
		"updated":       m.UpdatedAt.UTC().Format(time.RFC3339),
		TextField(lang): m.Text,
	}
}

// MapUser converts a user record into its index document.
func MapUser(u platform.User) Document {
	doc := Document{
		"id":            UserDocID(u.ID),
		"type":          DocTypeUser,
		"user":          u.ID,
		"created":       u.CreatedAt.UTC().Format(time.RFC3339),
		"user_username": u.Username,
		"user_name":     u.Name,
	}
	if len(u.Emails) > 0 {
		doc["user_email"] = u.Emails
	}
	return doc
}

// stringField reads a string-typed field off a raw response document.
func (d Document) stringField(name string) string {
	switch v := d[name].(type) {
	case string:
		return v
	case []any:
		// Multi-valued fields come back as arrays; take the first value.
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
