package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chat is one stored exchange. Rows are never updated.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Truncated bool      `json:"truncated"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) InsertChat(ctx context.Context, userID uuid.UUID, prompt, response string, truncated bool) (Chat, error) {
	c := Chat{
		ID:        uuid.New(),
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Truncated: truncated,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chats (id, user_id, prompt, response, truncated)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.UserID, c.Prompt, c.Response, c.Truncated,
	).Scan(&c.CreatedAt)
	if err != nil {
		return Chat{}, fmt.Errorf("insert chat: %w", mapErr(err))
	}
	return c, nil
}

// ListChats returns at most limit chats for the user, newest first.
func (s *Store) ListChats(ctx context.Context, userID uuid.UUID, limit int) ([]Chat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, prompt, response, truncated, created_at
		FROM chats
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Prompt, &c.Response, &c.Truncated, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Chronological reverses a newest-first listing in place and returns it.
func Chronological(chats []Chat) []Chat {
	for i, j := 0, len(chats)-1; i < j; i, j = i+1, j-1 {
		chats[i], chats[j] = chats[j], chats[i]
	}
	return chats
}
