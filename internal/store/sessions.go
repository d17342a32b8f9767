package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Token     uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (Session, error) {
	sess := Session{
		Token:     uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`,
		sess.Token, sess.UserID, sess.ExpiresAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", mapErr(err))
	}
	return sess, nil
}

// SessionUser resolves an unexpired session token to its user.
func (s *Store) SessionUser(ctx context.Context, token uuid.UUID) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > now()`,
		token,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get session: %w", mapErr(err))
	}
	return u, nil
}

func (s *Store) DeleteSession(ctx context.Context, token uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
