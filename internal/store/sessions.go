package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"daycal/internal/model"
)

// CreateSession stores an issued token for userID valid for ttl.
func (s *Store) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) (model.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	sess := model.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)
	`, sess.Token, sess.UserID, unix(sess.CreatedAt), unix(sess.ExpiresAt))
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// SessionUser resolves a live token to its user. Expired and unknown tokens
// both return ErrNotFound.
func (s *Store) SessionUser(ctx context.Context, token string) (model.User, model.Session, error) {
	var (
		u                model.User
		sess             model.Session
		created, expires int64
		userCreated      int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT s.token, s.created_at, s.expires_at, u.id, u.username, u.password_hash, u.created_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, unix(s.now())).Scan(&sess.Token, &created, &expires, &u.ID, &u.Username, &u.PasswordHash, &userCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, model.Session{}, fmt.Errorf("session user: %w", err)
	}
	sess.UserID = u.ID
	sess.CreatedAt = fromUnix(created)
	sess.ExpiresAt = fromUnix(expires)
	u.CreatedAt = fromUnix(userCreated)
	return u, sess, nil
}

// DeleteSession removes a token. Deleting an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes expired tokens and reports how many went.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, unix(s.now()))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
