package llm

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/daylit/chatrelay/internal/chat"
	"github.com/daylit/chatrelay/internal/config"
)

// OpenAI is the Client implementation backed by the OpenAI chat completion
// API (or any compatible endpoint reachable through base_url).
type OpenAI struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

// NewOpenAI builds an OpenAI client from configuration.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: prompt,
	}
}

// StreamChat forwards the history, prefixed with the persona system
// instruction, and returns the provider's token stream.
func (o *OpenAI) StreamChat(ctx context.Context, messages []chat.Message) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:  o.model,
		Stream: true,
		Messages: append(
			[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt}},
			toOpenAI(messages)...,
		),
	}
	upstream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &openaiStream{upstream: upstream}, nil
}

func toOpenAI(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}
	return out
}

type openaiStream struct {
	upstream *openai.ChatCompletionStream
	finished bool
}

func (s *openaiStream) Recv() (Event, error) {
	if s.finished {
		return Event{}, io.EOF
	}
	for {
		resp, err := s.upstream.Recv()
		if errors.Is(err, io.EOF) {
			// Providers normally send a finish reason before closing; if
			// this one did not, synthesize the terminal event so consumers
			// always see one.
			s.finished = true
			return Event{Kind: EventFinish, FinishReason: string(openai.FinishReasonStop)}, nil
		}
		if err != nil {
			return Event{}, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" && choice.FinishReason != openai.FinishReasonNull {
			s.finished = true
			return Event{Kind: EventFinish, FinishReason: string(choice.FinishReason)}, nil
		}
		if choice.Delta.Content != "" {
			return Event{Kind: EventText, Text: choice.Delta.Content}, nil
		}
	}
}

func (s *openaiStream) Close() error {
	return s.upstream.Close()
}
