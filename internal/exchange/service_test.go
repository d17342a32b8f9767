package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/hermes"
	"github.com/MikeSquared-Agency/parley/internal/store"
	"github.com/MikeSquared-Agency/parley/internal/stream"
)

type fakeProvider struct {
	chunks []any
	err    error
	// before is called ahead of chunk i when set.
	before func(i int)
	got    stream.Request
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Stream(ctx context.Context, req stream.Request, emit func(any) error) error {
	p.got = req
	for i, c := range p.chunks {
		if p.before != nil {
			p.before(i)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return p.err
}

type fakeOutput struct {
	mu      sync.Mutex
	body    strings.Builder
	flushes int
	closed  bool
}

func (o *fakeOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.body.Write(p)
}

func (o *fakeOutput) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushes++
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type fakeChats struct {
	mu    sync.Mutex
	saved []store.Chat
	err   error
	// closedAtInsert reports whether the output was closed when the insert ran.
	out            *fakeOutput
	closedAtInsert bool
}

func (c *fakeChats) InsertChat(ctx context.Context, userID uuid.UUID, prompt, response string, truncated bool) (store.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil {
		c.out.mu.Lock()
		c.closedAtInsert = c.out.closed
		c.out.mu.Unlock()
	}
	if c.err != nil {
		return store.Chat{}, c.err
	}
	ch := store.Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Truncated: truncated,
		CreatedAt: time.Now(),
	}
	c.saved = append(c.saved, ch)
	return ch, nil
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject, data})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(prompt string) chat.Request {
	return chat.Request{Messages: []chat.Message{
		{Role: chat.RoleUser, Content: "earlier"},
		{Role: chat.RoleAssistant, Content: "reply"},
		{Role: chat.RoleUser, Content: prompt},
	}}
}

func wait(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestStream_DeliversAndRecords(t *testing.T) {
	p := &fakeProvider{chunks: []any{"Hel", []byte("lo, "), "world"}}
	out := &fakeOutput{}
	chats := &fakeChats{out: out}
	pub := &fakePublisher{}
	s := New(p, chats, pub, time.Minute, discardLogger())
	user := uuid.New()

	res := s.Stream(context.Background(), user, request("  greet me  "), out)
	wait(t, s)

	require.NoError(t, res.Err)
	assert.Equal(t, "Hello, world", out.body.String())
	assert.Equal(t, 3, out.flushes)
	assert.True(t, out.closed)

	assert.Equal(t, chat.SystemPrompt, p.got.System)
	assert.Len(t, p.got.Messages, 3)

	require.Len(t, chats.saved, 1)
	saved := chats.saved[0]
	assert.Equal(t, user, saved.UserID)
	assert.Equal(t, "  greet me  ", saved.Prompt, "prompt is stored as sent")
	assert.Equal(t, "Hello, world", saved.Response)
	assert.False(t, saved.Truncated)
	assert.True(t, chats.closedAtInsert, "output must be closed before recording")

	require.Len(t, pub.events, 1)
	assert.Equal(t, hermes.SubjectExchangeStored, pub.events[0].subject)
	evt := pub.events[0].data.(hermes.ExchangeStored)
	assert.Equal(t, saved.ID.String(), evt.ChatID)
	assert.Equal(t, len("Hello, world"), evt.ResponseLen)
	assert.Equal(t, "fake", evt.Provider)
}

func TestStream_ProviderErrorAfterFragments(t *testing.T) {
	p := &fakeProvider{chunks: []any{"partial "}, err: errors.New("overloaded")}
	out := &fakeOutput{}
	chats := &fakeChats{}
	pub := &fakePublisher{}
	s := New(p, chats, pub, time.Minute, discardLogger())

	res := s.Stream(context.Background(), uuid.New(), request("q"), out)
	wait(t, s)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "fake stream: overloaded")
	assert.Equal(t, "partial ", out.body.String())

	require.Len(t, chats.saved, 1)
	assert.Equal(t, "partial ", chats.saved[0].Response)
	assert.True(t, chats.saved[0].Truncated)

	require.Len(t, pub.events, 2)
	assert.Equal(t, hermes.SubjectStreamFailed, pub.events[0].subject)
	assert.Equal(t, 1, pub.events[0].data.(hermes.StreamFailed).Fragments)
	assert.Equal(t, hermes.SubjectExchangeStored, pub.events[1].subject)
}

func TestStream_ProviderErrorBeforeFragments(t *testing.T) {
	p := &fakeProvider{err: errors.New("bad key")}
	out := &fakeOutput{}
	chats := &fakeChats{}
	pub := &fakePublisher{}
	s := New(p, chats, pub, time.Minute, discardLogger())

	res := s.Stream(context.Background(), uuid.New(), request("q"), out)
	wait(t, s)

	require.Error(t, res.Err)
	assert.Zero(t, res.Fragments)
	assert.Empty(t, out.body.String())
	assert.Empty(t, chats.saved)
	require.Len(t, pub.events, 1)
	assert.Equal(t, hermes.SubjectStreamFailed, pub.events[0].subject)
}

func TestStream_ClientDisconnectRecordsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakeProvider{
		chunks: []any{"one ", "two ", "three"},
		before: func(i int) {
			if i == 2 {
				cancel()
			}
		},
	}
	out := &fakeOutput{}
	chats := &fakeChats{}
	pub := &fakePublisher{}
	s := New(p, chats, pub, time.Minute, discardLogger())

	res := s.Stream(ctx, uuid.New(), request("count"), out)
	wait(t, s)

	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "one two ", out.body.String())

	require.Len(t, chats.saved, 1)
	assert.Equal(t, "one two ", chats.saved[0].Response)
	assert.True(t, chats.saved[0].Truncated)

	require.Len(t, pub.events, 1, "disconnects are not reported as failures")
	assert.Equal(t, hermes.SubjectExchangeStored, pub.events[0].subject)
}

func TestStream_RecordFailureIsContained(t *testing.T) {
	p := &fakeProvider{chunks: []any{"ok"}}
	out := &fakeOutput{}
	chats := &fakeChats{err: errors.New("db down")}
	pub := &fakePublisher{}
	s := New(p, chats, pub, time.Minute, discardLogger())

	res := s.Stream(context.Background(), uuid.New(), request("q"), out)
	wait(t, s)

	require.NoError(t, res.Err)
	assert.Equal(t, "ok", out.body.String())
	assert.Empty(t, pub.events)
}

func TestStream_NilPublisher(t *testing.T) {
	p := &fakeProvider{chunks: []any{"ok"}}
	chats := &fakeChats{}
	s := New(p, chats, nil, time.Minute, discardLogger())

	res := s.Stream(context.Background(), uuid.New(), request("q"), &fakeOutput{})
	wait(t, s)

	require.NoError(t, res.Err)
	require.Len(t, chats.saved, 1)
}

func TestStream_DeadlineBoundsStream(t *testing.T) {
	p := &fakeProvider{
		chunks: []any{"slow"},
		before: func(int) { time.Sleep(50 * time.Millisecond) },
	}
	chats := &fakeChats{}
	s := New(p, chats, nil, 10*time.Millisecond, discardLogger())

	res := s.Stream(context.Background(), uuid.New(), request("q"), &fakeOutput{})
	wait(t, s)

	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Empty(t, chats.saved)
}

func TestWait_RespectsContext(t *testing.T) {
	s := New(&fakeProvider{}, &fakeChats{}, nil, time.Minute, discardLogger())
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
