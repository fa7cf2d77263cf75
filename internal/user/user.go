// Package user is the relational store for user-account rows. Raw pgx,
// same idiom as internal/tokenstore.
package user

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

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// User mirrors the users table. PasswordHash is never serialized outward by
// any caller of this package — callers blank it themselves at the RPC
// boundary, since that boundary lives in internal/authsvc, not here.
type User struct {
	ID           int64
	UUID         uuid.UUID
	Mobile       string
	PasswordHash string
	DisplayName  string
	Role         Role
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Store interface {
	FindByMobile(ctx context.Context, mobile string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*User, error)
	ExistsByMobile(ctx context.Context, mobile string) (bool, error)
	Create(ctx context.Context, mobile, passwordHash, displayName string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateDisabled(ctx context.Context, id int64, disabled bool) error
	List(ctx context.Context, offset, limit int) ([]User, error)
}

type PgStore struct {
	pool *pool.Pool[*sqlconn.Conn]
}

func New(p *pool.Pool[*sqlconn.Conn]) *PgStore {
	return &PgStore{pool: p}
}

const selectColumns = `id, uuid, mobile, password_hash, display_name, role, disabled, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.UUID, &u.Mobile, &u.PasswordHash, &u.DisplayName, &role, &u.Disabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (s *PgStore) FindByMobile(ctx context.Context, mobile string) (*User, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn().QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE mobile = $1`, mobile)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.UserNotFound, "no account with this mobile number")
		}
		return nil, apperr.Newf(apperr.Internal, "find user by mobile: %v", err)
	}
	return u, nil
}

func (s *PgStore) FindByID(ctx context.Context, id int64) (*User, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn().QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.UserNotFound, "account not found")
		}
		return nil, apperr.Newf(apperr.Internal, "find user by id: %v", err)
	}
	return u, nil
}

func (s *PgStore) FindByUUID(ctx context.Context, id uuid.UUID) (*User, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn().QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE uuid = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.UserNotFound, "account not found")
		}
		return nil, apperr.Newf(apperr.Internal, "find user by uuid: %v", err)
	}
	return u, nil
}

func (s *PgStore) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer lease.Release()

	var exists bool
	err = lease.Conn().QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE mobile = $1)`, mobile).Scan(&exists)
	if err != nil {
		return false, apperr.Newf(apperr.Internal, "check mobile existence: %v", err)
	}
	return exists, nil
}

func (s *PgStore) Create(ctx context.Context, mobile, passwordHash, displayName string) (*User, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn().QueryRow(ctx, `
		INSERT INTO users (id, uuid, mobile, password_hash, display_name, role, disabled, created_at, updated_at)
		VALUES (nextval('users_id_seq'), gen_random_uuid(), $1, $2, $3, 'user', false, now(), now())
		RETURNING `+selectColumns,
		mobile, passwordHash, displayName)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.New(apperr.MobileTaken, "mobile number already registered")
		}
		return nil, apperr.Newf(apperr.Internal, "create user: %v", err)
	}
	return u, nil
}

func (s *PgStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return apperr.Newf(apperr.Internal, "update password hash: %v", err)
	}
	return nil
}

func (s *PgStore) UpdateDisabled(ctx context.Context, id int64, disabled bool) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().Exec(ctx, `UPDATE users SET disabled = $1, updated_at = now() WHERE id = $2`, disabled, id)
	if err != nil {
		return apperr.Newf(apperr.Internal, "update disabled flag: %v", err)
	}
	return nil
}

func (s *PgStore) List(ctx context.Context, offset, limit int) ([]User, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn().Query(ctx, `SELECT `+selectColumns+` FROM users ORDER BY id ASC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, apperr.Newf(apperr.Internal, "list users: %v", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Newf(apperr.Internal, "scan user: %v", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Newf(apperr.Internal, "list users: %v", err)
	}
	return users, nil
}

var _ Store = (*PgStore)(nil)
