package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/stream"
)

// brokenClient fails when opening the stream.
type brokenClient struct{}

func (brokenClient) StreamChat(ctx context.Context, messages []chat.Message) (llm.Stream, error) {
	return nil, errors.New("provider exploded")
}

// flakyClient yields a couple of fragments and then a stream-time error.
type flakyClient struct{}

func (flakyClient) StreamChat(ctx context.Context, messages []chat.Message) (llm.Stream, error) {
	return &flakyStream{}, nil
}

type flakyStream struct{ step int }

func (s *flakyStream) Recv() (llm.Event, error) {
	s.step++
	switch s.step {
	case 1:
		return llm.Event{Kind: llm.EventText, Text: "partial "}, nil
	case 2:
		return llm.Event{Kind: llm.EventText, Text: "answer"}, nil
	default:
		return llm.Event{}, errors.New("connection reset by provider")
	}
}

func (s *flakyStream) Close() error { return nil }

func readAll(t *testing.T, body io.Reader) (text string, finish string, errMsgs []string) {
	t.Helper()
	r := stream.NewReader(body)
	var b strings.Builder
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		switch ev.Kind {
		case stream.KindText:
			b.WriteString(ev.Text)
		case stream.KindFinish:
			finish = ev.FinishReason
		case stream.KindError:
			errMsgs = append(errMsgs, ev.Message)
		}
	}
	return b.String(), finish, errMsgs
}

func TestChat_FixtureStream(t *testing.T) {
	s := New(nil, llm.NewFixture())

	rec := do(t, s, http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, stream.ProtocolVersion, rec.Header().Get(stream.ProtocolHeader))

	text, finish, errMsgs := readAll(t, rec.Body)
	require.Equal(t, llm.FixtureText, text)
	require.Equal(t, "stop", finish)
	require.Empty(t, errMsgs)
	require.True(t, rec.Flushed, "fragments must be flushed as they are written")
}

func TestChat_Validation(t *testing.T) {
	s := New(nil, llm.NewFixture())

	cases := []struct {
		name string
		body string
	}{
		{"no body", ""},
		{"bad json", `{"messages":`},
		{"missing messages", `{}`},
		{"empty messages", `{"messages":[]}`},
		{"invalid role", `{"messages":[{"role":"robot","content":"hi"}]}`},
		{"blank content", `{"messages":[{"role":"user","content":"  "}]}`},
	}
	for _, tc := range cases {
		rec := do(t, s, http.MethodPost, "/chat", tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
}

func TestChat_ProviderUnconfigured(t *testing.T) {
	rec := do(t, New(nil, nil), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChat_OpenFailureIs500WithDetails(t *testing.T) {
	rec := do(t, New(nil, brokenClient{}), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "provider exploded")
}

func TestChat_MidStreamErrorTravelsInStream(t *testing.T) {
	rec := do(t, New(nil, flakyClient{}), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}]}`)
	// Headers were committed before the failure, so the status stays 200 and
	// the error rides inside the stream.
	require.Equal(t, http.StatusOK, rec.Code)

	text, finish, errMsgs := readAll(t, rec.Body)
	require.Equal(t, "partial answer", text)
	require.Equal(t, "error", finish)
	require.Len(t, errMsgs, 1)
	require.Contains(t, errMsgs[0], "connection reset")
}
