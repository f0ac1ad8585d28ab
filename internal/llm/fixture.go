package llm

import (
	"context"
	"io"
	"strings"

	"github.com/daylit/chatrelay/internal/chat"
)

// FixtureText is the full text produced by the fixture stream.
const FixtureText = "This is a mock reply from the development fixture stream."

// Fixture is a deterministic Client that never talks to a provider. It emits
// the fixture text split into small fragments so consumers exercise the same
// incremental path as the real stream.
type Fixture struct {
	fragments []string
}

// NewFixture returns a fixture client emitting FixtureText.
func NewFixture() *Fixture {
	return &Fixture{fragments: splitFragments(FixtureText)}
}

// NewFixtureText returns a fixture client emitting the given text.
func NewFixtureText(text string) *Fixture {
	return &Fixture{fragments: splitFragments(text)}
}

func (f *Fixture) StreamChat(ctx context.Context, messages []chat.Message) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fixtureStream{fragments: f.fragments}, nil
}

type fixtureStream struct {
	fragments []string
	pos       int
	finished  bool
}

func (s *fixtureStream) Recv() (Event, error) {
	if s.finished {
		return Event{}, io.EOF
	}
	if s.pos < len(s.fragments) {
		frag := s.fragments[s.pos]
		s.pos++
		return Event{Kind: EventText, Text: frag}, nil
	}
	s.finished = true
	return Event{Kind: EventFinish, FinishReason: "stop"}, nil
}

func (s *fixtureStream) Close() error { return nil }

// splitFragments cuts text on word boundaries, keeping the separator with the
// preceding word so concatenation reproduces the input exactly.
func splitFragments(text string) []string {
	words := strings.SplitAfter(text, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
