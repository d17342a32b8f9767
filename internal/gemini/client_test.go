package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/stream"
)

type fakeModel struct {
	chunks   []string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	for _, c := range f.chunks {
		if err := f.opts.StreamingFunc(ctx, []byte(c)); err != nil {
			return &llms.ContentResponse{}, nil
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestStream_ConvertsConversation(t *testing.T) {
	model := &fakeModel{chunks: []string{"Hel", "lo"}}
	c := NewWithModel(model, 256)

	var got []string
	err := c.Stream(context.Background(), stream.Request{
		System: chat.SystemPrompt,
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RoleAssistant, Content: "hello"},
			{Role: chat.RoleUser, Content: "a button please"},
		},
	}, func(chunk any) error {
		text, err := stream.Text(chunk)
		got = append(got, text)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[3].Role)
	assert.Equal(t, 256, model.opts.MaxTokens)
}

func TestStream_EmitErrorIsReturned(t *testing.T) {
	model := &fakeModel{chunks: []string{"a", "b"}}
	c := NewWithModel(model, 256)
	stop := errors.New("client gone")

	err := c.Stream(context.Background(), stream.Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}},
		func(chunk any) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestStream_ProviderError(t *testing.T) {
	boom := errors.New("error in stream mode: 503")
	model := &fakeModel{chunks: []string{"part"}, err: boom}
	c := NewWithModel(model, 256)

	var frags []string
	for frag, err := range stream.Fragments(context.Background(), c, stream.Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: "x"}}}) {
		if err != nil {
			assert.ErrorIs(t, err, boom)
			break
		}
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"part"}, frags)
}
