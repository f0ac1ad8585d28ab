package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/store"
)

// failingStore errors on every operation and counts how often it was reached,
// so tests can assert validation happens before storage access.
type failingStore struct {
	calls int
}

func (f *failingStore) CreateConversation(ctx context.Context, title string) (*chat.Conversation, error) {
	f.calls++
	return nil, errors.New("boom")
}

func (f *failingStore) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	f.calls++
	return nil, errors.New("boom")
}

func (f *failingStore) ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	f.calls++
	return nil, errors.New("boom")
}

func (f *failingStore) AppendMessage(ctx context.Context, conversationID int64, role chat.Role, content string) (*chat.Message, error) {
	f.calls++
	return nil, errors.New("boom")
}

func (f *failingStore) Close() {}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body == "" {
		rdr = bytes.NewReader(nil)
	} else {
		rdr = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeList[T any](t *testing.T, rec *httptest.ResponseRecorder) []T {
	t.Helper()
	var out []T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListConversations_UnconfiguredStoreReturnsEmpty(t *testing.T) {
	s := New(nil, nil)
	rec := do(t, s, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestListConversations_DegradesOnStoreError(t *testing.T) {
	s := New(&failingStore{}, nil)
	rec := do(t, s, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateConversation_RoundTrip(t *testing.T) {
	s := New(store.NewMemory(), nil)

	rec := do(t, s, http.MethodPost, "/conversations", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created conversationPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, store.DefaultTitle, created.Title)
	require.Equal(t, chat.BucketToday, created.Date)

	list := decodeList[conversationPayload](t, do(t, s, http.MethodGet, "/conversations", ""))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)
	require.Equal(t, chat.BucketToday, list[0].Date)
}

func TestCreateConversation_Unconfigured(t *testing.T) {
	rec := do(t, New(nil, nil), http.MethodPost, "/conversations", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateConversation_InsertFailure(t *testing.T) {
	rec := do(t, New(&failingStore{}, nil), http.MethodPost, "/conversations", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMessages_InvalidConversationID(t *testing.T) {
	fs := &failingStore{}
	s := New(fs, nil)

	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		rec := do(t, s, http.MethodGet, "/conversations/"+id+"/messages", "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "GET id=%s", id)

		rec = do(t, s, http.MethodPost, "/conversations/"+id+"/messages",
			`{"role":"user","content":"hi"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code, "POST id=%s", id)
	}
	require.Zero(t, fs.calls, "validation must reject before any storage access")
}

func TestListMessages_Unconfigured(t *testing.T) {
	rec := do(t, New(nil, nil), http.MethodGet, "/conversations/1/messages", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListMessages_StoreError(t *testing.T) {
	rec := do(t, New(&failingStore{}, nil), http.MethodGet, "/conversations/1/messages", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAppendMessage_ThenList(t *testing.T) {
	mem := store.NewMemory()
	s := New(mem, nil)

	_, err := mem.CreateConversation(context.Background(), store.DefaultTitle)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/conversations/1/messages",
		`{"role":"user","content":"  hello there  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created messageCreatedPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, chat.RoleUser, created.Role)
	require.Equal(t, "hello there", created.Content, "content must be trimmed")
	require.False(t, created.CreatedAt.IsZero())

	list := decodeList[messagePayload](t, do(t, s, http.MethodGet, "/conversations/1/messages", ""))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)
	require.Equal(t, "hello there", list[0].Content)
}

func TestAppendMessage_UnknownConversationIs404(t *testing.T) {
	s := New(store.NewMemory(), nil)
	rec := do(t, s, http.MethodPost, "/conversations/99/messages",
		`{"role":"user","content":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendMessage_Validation(t *testing.T) {
	fs := &failingStore{}
	s := New(fs, nil)

	cases := []struct {
		name string
		body string
	}{
		{"unparseable json", `{"role":`},
		{"missing role", `{"content":"hi"}`},
		{"role outside enumeration", `{"role":"robot","content":"hi"}`},
		{"content not a string", `{"role":"user","content":7}`},
		{"content missing", `{"role":"user"}`},
		{"content empty after trim", `{"role":"user","content":"   "}`},
	}
	for _, tc := range cases {
		rec := do(t, s, http.MethodPost, "/conversations/1/messages", tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
	require.Zero(t, fs.calls)
}

func TestAppendMessage_Unconfigured(t *testing.T) {
	rec := do(t, New(nil, nil), http.MethodPost, "/conversations/1/messages",
		`{"role":"user","content":"hi"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAppendMessage_StoreError(t *testing.T) {
	rec := do(t, New(&failingStore{}, nil), http.MethodPost, "/conversations/1/messages",
		`{"role":"user","content":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListMessages_Idempotent(t *testing.T) {
	mem := store.NewMemory()
	s := New(mem, llm.NewFixture())

	_, err := mem.CreateConversation(context.Background(), store.DefaultTitle)
	require.NoError(t, err)
	_, err = mem.AppendMessage(context.Background(), 1, chat.RoleUser, "one")
	require.NoError(t, err)
	_, err = mem.AppendMessage(context.Background(), 1, chat.RoleAssistant, "two")
	require.NoError(t, err)

	first := do(t, s, http.MethodGet, "/conversations/1/messages", "")
	second := do(t, s, http.MethodGet, "/conversations/1/messages", "")
	require.Equal(t, first.Body.String(), second.Body.String())
}

func TestHealth(t *testing.T) {
	rec := do(t, New(store.NewMemory(), llm.NewFixture()), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, New(nil, nil), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := New(nil, nil)
	s.mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	rec := do(t, s, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
