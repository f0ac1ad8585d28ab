package client

import (
	"context"

	"github.com/daylit/chatrelay/internal/chat"
)

// Group is one recency bucket of the sidebar list.
type Group struct {
	Bucket        chat.Bucket
	Conversations []Conversation
}

// Sidebar lists conversations grouped by recency bucket and tracks the
// active selection. It is read-mostly: a failed refresh keeps the previous
// list so the sidebar never goes blank on a transient error.
type Sidebar struct {
	api    *Client
	items  []Conversation
	active string
}

// NewSidebar builds an empty sidebar on top of api.
func NewSidebar(api *Client) *Sidebar {
	return &Sidebar{api: api}
}

// Refresh reloads the conversation list. On failure the previous list is
// kept and the error returned.
func (s *Sidebar) Refresh(ctx context.Context) error {
	items, err := s.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	s.items = items
	return nil
}

// Groups returns the list partitioned into buckets in display order, empty
// buckets omitted. Order within a bucket is the server order (newest first).
func (s *Sidebar) Groups() []Group {
	byBucket := make(map[chat.Bucket][]Conversation)
	for _, conv := range s.items {
		byBucket[conv.Date] = append(byBucket[conv.Date], conv)
	}

	groups := make([]Group, 0, len(byBucket))
	for _, bucket := range chat.Buckets() {
		if convs := byBucket[bucket]; len(convs) > 0 {
			groups = append(groups, Group{Bucket: bucket, Conversations: convs})
		}
	}
	return groups
}

// SetActive marks a conversation as selected.
func (s *Sidebar) SetActive(id string) {
	s.active = id
}

// Active returns the selected conversation id, empty when none.
func (s *Sidebar) Active() string {
	return s.active
}
