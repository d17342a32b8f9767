// Package exchange runs one chat exchange end to end: stream the model reply
// to the client, then record the prompt and the delivered text.
package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/hermes"
	"github.com/MikeSquared-Agency/parley/internal/relay"
	"github.com/MikeSquared-Agency/parley/internal/store"
	"github.com/MikeSquared-Agency/parley/internal/stream"
)

// ChatWriter stores finished exchanges.
type ChatWriter interface {
	InsertChat(ctx context.Context, userID uuid.UUID, prompt, response string, truncated bool) (store.Chat, error)
}

// Publisher is optional; a nil Publisher disables events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Service orchestrates exchanges. The zero value is not usable; call New.
type Service struct {
	provider    stream.Provider
	chats       ChatWriter
	events      Publisher
	maxDuration time.Duration
	logger      *slog.Logger

	wg sync.WaitGroup
}

func New(p stream.Provider, chats ChatWriter, events Publisher, maxDuration time.Duration, logger *slog.Logger) *Service {
	return &Service{
		provider:    p,
		chats:       chats,
		events:      events,
		maxDuration: maxDuration,
		logger:      logger,
	}
}

func (s *Service) Provider() string {
	return s.provider.Name()
}

// Stream forwards the model reply for req to out and closes out. Recording
// starts only after out is closed, runs in the background and is bounded by
// the same deadline as the stream. It survives the caller's cancellation so
// a client that disconnects mid-reply still gets its partial text recorded.
func (s *Service) Stream(ctx context.Context, userID uuid.UUID, req chat.Request, out relay.Output) relay.Result {
	deadline := time.Now().Add(s.maxDuration)
	streamCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	rl := relay.New(out)
	res := rl.Drain(stream.Fragments(streamCtx, s.provider, stream.Request{
		System:   chat.SystemPrompt,
		Messages: req.Messages,
	}))
	if err := rl.Close(); err != nil {
		s.logger.Warn("close output failed", "user_id", userID, "error", err)
	}
	if res.Err != nil {
		s.streamFailed(userID, res)
	}

	prompt := req.Prompt()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
		defer cancel()
		s.record(pctx, rl, userID, prompt)
	}()
	return res
}

func (s *Service) streamFailed(userID uuid.UUID, res relay.Result) {
	if errors.Is(res.Err, context.Canceled) {
		s.logger.Info("client disconnected", "user_id", userID, "fragments", res.Fragments)
		return
	}
	s.logger.Error("stream failed",
		"user_id", userID,
		"provider", s.provider.Name(),
		"fragments", res.Fragments,
		"error", res.Err,
	)
	s.publish(hermes.SubjectStreamFailed, hermes.StreamFailed{
		UserID:    userID.String(),
		Provider:  s.provider.Name(),
		Fragments: res.Fragments,
		Error:     res.Err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) record(ctx context.Context, rl *relay.Relay, userID uuid.UUID, prompt string) {
	rec := &chatRecorder{chats: s.chats, userID: userID}
	err := rl.Persist(ctx, rec, prompt)
	switch {
	case errors.Is(err, relay.ErrNothingToPersist):
		s.logger.Debug("nothing delivered, exchange not recorded", "user_id", userID)
		return
	case err != nil:
		s.logger.Error("failed to record exchange", "user_id", userID, "error", err)
		return
	}

	s.logger.Info("exchange recorded",
		"chat_id", rec.chat.ID,
		"user_id", userID,
		"truncated", rec.chat.Truncated,
		"response_len", len(rec.chat.Response),
	)
	s.publish(hermes.SubjectExchangeStored, hermes.ExchangeStored{
		ChatID:      rec.chat.ID.String(),
		UserID:      userID.String(),
		Provider:    s.provider.Name(),
		Truncated:   rec.chat.Truncated,
		ResponseLen: len(rec.chat.Response),
		Timestamp:   rec.chat.CreatedAt.UTC(),
	})
}

func (s *Service) publish(subject string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Wait blocks until every background recording has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chatRecorder struct {
	chats  ChatWriter
	userID uuid.UUID
	chat   store.Chat
}

func (r *chatRecorder) Record(ctx context.Context, ex relay.Exchange) error {
	c, err := r.chats.InsertChat(ctx, r.userID, ex.Prompt, ex.Response, ex.Truncated)
	if err != nil {
		return err
	}
	r.chat = c
	return nil
}
