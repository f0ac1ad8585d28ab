// Package chat holds the domain types shared by the store, the relay and the
// client controller: conversations, messages, roles and recency buckets.
package chat

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a message. The set is closed; anything else
// is rejected at the API boundary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates s against the closed role enumeration.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q: must be one of user, assistant, system", s)
}

// Message is one turn in a conversation. IDs are server-assigned.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is a titled, timestamped container owning an ordered list of
// messages.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Bucket is a read-time classification of a conversation's age, used to group
// the sidebar list.
type Bucket string

const (
	BucketToday     Bucket = "today"
	BucketYesterday Bucket = "yesterday"
	BucketWeek      Bucket = "7days"
	BucketMonth     Bucket = "30days"
)

// Buckets lists all buckets in display order, newest first.
func Buckets() []Bucket {
	return []Bucket{BucketToday, BucketYesterday, BucketWeek, BucketMonth}
}

// BucketFor classifies createdAt relative to now by whole elapsed days:
// <1 day is today, 1-<2 days is yesterday, 2-7 days is 7days, older is 30days.
func BucketFor(createdAt, now time.Time) Bucket {
	days := int(now.Sub(createdAt).Hours() / 24)
	switch {
	case days <= 0:
		return BucketToday
	case days == 1:
		return BucketYesterday
	case days <= 7:
		return BucketWeek
	default:
		return BucketMonth
	}
}
