package authsvc

import (
	"context"

	"github.com/google/uuid"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/token"
)

// RefreshToken rotates a presented refresh token for a fresh pair.
// Rotation deletes the old fingerprint and persists the new one in that
// order: a crash between the two steps leaves at most one stray expired
// row for the sweeper to reclaim, never a reusable old token.
func (s *Service) RefreshToken(ctx context.Context, refresh string) (Tokens, error) {
	userID, err := s.codec.ParseRefresh(refresh)
	if err != nil {
		return Tokens{}, err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Tokens{}, err
	}

	fp := token.Fingerprint(refresh)
	valid, err := s.tokens.IsValid(ctx, fp)
	if err != nil {
		return Tokens{}, err
	}
	if !valid {
		return Tokens{}, apperr.New(apperr.TokenRevoked, "refresh token no longer valid")
	}

	if err := s.tokens.DeleteByFingerprint(ctx, fp); err != nil {
		return Tokens{}, err
	}

	return s.issueAndPersist(ctx, u)
}

// Logout invalidates a single refresh token. Idempotent; an empty refresh
// is treated as having nothing to invalidate.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	fp := token.Fingerprint(refresh)
	return s.tokens.DeleteByFingerprint(ctx, fp)
}

// LogoutAll revokes every session belonging to the user identified by uuid.
func (s *Service) LogoutAll(ctx context.Context, userUUID uuid.UUID) error {
	u, err := s.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}
	_, err = s.tokens.DeleteByUser(ctx, u.ID)
	return err
}

// AccessTokenPayload is the sidecar-RPC surface of ValidateAccessToken.
type AccessTokenPayload struct {
	UUID      string
	Mobile    string
	Role      string
	ExpiresAt int64
}

// ValidateAccessToken verifies token and surfaces its claims for peer
// services that front their own RPC boundary with this service's tokens.
func (s *Service) ValidateAccessToken(ctx context.Context, tok string) (AccessTokenPayload, error) {
	payload, err := s.codec.VerifyAccess(tok)
	if err != nil {
		return AccessTokenPayload{}, err
	}
	return AccessTokenPayload{
		UUID:      payload.UUID.String(),
		Mobile:    payload.Mobile,
		Role:      payload.Role,
		ExpiresAt: payload.ExpiresAt.Unix(),
	}, nil
}

// SessionSummary is the outward-facing view of a tokenstore.Session — the
// fingerprint never leaves this package.
type SessionSummary struct {
	ID        string
	CreatedAt int64
	ExpiresAt int64
}

// ListSessions surfaces a user's active sessions.
func (s *Service) ListSessions(ctx context.Context, userUUID uuid.UUID) ([]SessionSummary, error) {
	u, err := s.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.tokens.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionSummary{
			ID:        sess.ID.String(),
			CreatedAt: sess.CreatedAt.Unix(),
			ExpiresAt: sess.ExpiresAt.Unix(),
		})
	}
	return out, nil
}

// RevokeSession revokes a single session by id, scoped to userUUID so a
// caller cannot revoke another account's session.
func (s *Service) RevokeSession(ctx context.Context, userUUID uuid.UUID, sessionID uuid.UUID) error {
	u, err := s.users.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}
	return s.tokens.DeleteByID(ctx, u.ID, sessionID)
}
