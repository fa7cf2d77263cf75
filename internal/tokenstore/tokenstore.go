// Package tokenstore is the relational store for refresh-token sessions.
// Queries are hand-written inline pgx rather than a generated layer; the
// surface is small enough that a query builder would cost more than it
// saves.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/pool"
	"github.com/relay-id/authsvc/internal/sqlconn"
)

// Session is one row of the refresh_sessions table. UserID references the
// monotonic User.id, not the user's opaque UUID.
type Session struct {
	ID          uuid.UUID
	UserID      int64
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Store is the narrow contract internal/authsvc depends on.
type Store interface {
	SaveRefresh(ctx context.Context, userID int64, fingerprint string, ttl time.Duration) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*Session, error)
	IsValid(ctx context.Context, fingerprint string) (bool, error)
	CountActive(ctx context.Context, userID int64) (int, error)
	DeleteByFingerprint(ctx context.Context, fingerprint string) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]Session, error)
	DeleteByID(ctx context.Context, userID int64, sessionID uuid.UUID) error
}

// PgStore implements Store over a pooled *sqlconn.Conn.
type PgStore struct {
	pool *pool.Pool[*sqlconn.Conn]
}

func New(p *pool.Pool[*sqlconn.Conn]) *PgStore {
	return &PgStore{pool: p}
}

func (s *PgStore) SaveRefresh(ctx context.Context, userID int64, fingerprint string, ttl time.Duration) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES (gen_random_uuid(), $1, $2, now() + make_interval(secs => $3), now())`,
		userID, fingerprint, ttl.Seconds())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Newf(apperr.Internal, "duplicate refresh fingerprint: %v", err)
		}
		return apperr.Newf(apperr.Internal, "save refresh session: %v", err)
	}
	return nil
}

func (s *PgStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Session, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn().QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_sessions WHERE token_hash = $1`, fingerprint)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Fingerprint, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.TokenInvalid, "refresh token not recognized")
		}
		return nil, apperr.Newf(apperr.Internal, "find refresh session: %v", err)
	}
	return &sess, nil
}

func (s *PgStore) IsValid(ctx context.Context, fingerprint string) (bool, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer lease.Release()

	var exists bool
	err = lease.Conn().QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM refresh_sessions WHERE token_hash = $1 AND expires_at > now())`,
		fingerprint).Scan(&exists)
	if err != nil {
		return false, apperr.Newf(apperr.Internal, "check refresh session validity: %v", err)
	}
	return exists, nil
}

func (s *PgStore) CountActive(ctx context.Context, userID int64) (int, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	var count int
	err = lease.Conn().QueryRow(ctx, `
		SELECT count(*) FROM refresh_sessions WHERE user_id = $1 AND expires_at > now()`,
		userID).Scan(&count)
	if err != nil {
		return 0, apperr.Newf(apperr.Internal, "count active sessions: %v", err)
	}
	return count, nil
}

// DeleteByFingerprint is idempotent: a missing row is a successful no-op.
func (s *PgStore) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().Exec(ctx, `DELETE FROM refresh_sessions WHERE token_hash = $1`, fingerprint)
	if err != nil {
		return apperr.Newf(apperr.Internal, "delete refresh session: %v", err)
	}
	return nil
}

func (s *PgStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	tag, err := lease.Conn().Exec(ctx, `DELETE FROM refresh_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, apperr.Newf(apperr.Internal, "delete user sessions: %v", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) SweepExpired(ctx context.Context) (int64, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	tag, err := lease.Conn().Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, apperr.Newf(apperr.Internal, "sweep expired sessions: %v", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) ListByUser(ctx context.Context, userID int64) ([]Session, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn().Query(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_sessions WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Newf(apperr.Internal, "list user sessions: %v", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Fingerprint, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
			return nil, apperr.Newf(apperr.Internal, "scan user session: %v", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Newf(apperr.Internal, "list user sessions: %v", err)
	}
	return sessions, nil
}

func (s *PgStore) DeleteByID(ctx context.Context, userID int64, sessionID uuid.UUID) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().Exec(ctx, `
		DELETE FROM refresh_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return apperr.Newf(apperr.Internal, "delete session by id: %v", err)
	}
	return nil
}

var _ Store = (*PgStore)(nil)
