package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/server"
	"github.com/daylit/chatrelay/internal/store"
)

func TestSidebar_GroupsByRecency(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	now := time.Now()

	at := func(age time.Duration) func() time.Time {
		return func() time.Time { return now.Add(-age) }
	}

	mem.SetClock(at(10 * 24 * time.Hour))
	_, err := mem.CreateConversation(ctx, "ancient")
	require.NoError(t, err)
	mem.SetClock(at(3 * 24 * time.Hour))
	_, err = mem.CreateConversation(ctx, "last week")
	require.NoError(t, err)
	mem.SetClock(at(26 * time.Hour))
	_, err = mem.CreateConversation(ctx, "yesterday")
	require.NoError(t, err)
	mem.SetClock(at(0))
	_, err = mem.CreateConversation(ctx, "fresh")
	require.NoError(t, err)

	ts := httptest.NewServer(server.New(mem, llm.NewFixture()).Handler())
	defer ts.Close()

	sb := NewSidebar(New(ts.URL))
	require.NoError(t, sb.Refresh(ctx))

	groups := sb.Groups()
	require.Len(t, groups, 4)
	require.Equal(t, chat.BucketToday, groups[0].Bucket)
	require.Equal(t, "fresh", groups[0].Conversations[0].Title)
	require.Equal(t, chat.BucketYesterday, groups[1].Bucket)
	require.Equal(t, chat.BucketWeek, groups[2].Bucket)
	require.Equal(t, chat.BucketMonth, groups[3].Bucket)
	require.Equal(t, "ancient", groups[3].Conversations[0].Title)
}

func TestSidebar_RefreshFailureKeepsList(t *testing.T) {
	mem := store.NewMemory()
	_, err := mem.CreateConversation(context.Background(), store.DefaultTitle)
	require.NoError(t, err)
	ts := httptest.NewServer(server.New(mem, nil).Handler())

	sb := NewSidebar(New(ts.URL))
	require.NoError(t, sb.Refresh(context.Background()))
	require.Len(t, sb.Groups(), 1)

	// Backend gone: the previous list survives the failed refresh.
	ts.Close()
	require.Error(t, sb.Refresh(context.Background()))
	require.Len(t, sb.Groups(), 1)
}

func TestSidebar_Active(t *testing.T) {
	sb := NewSidebar(nil)
	require.Empty(t, sb.Active())
	sb.SetActive("7")
	require.Equal(t, "7", sb.Active())
}
