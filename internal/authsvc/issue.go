package authsvc

import (
	"context"
	"sort"

	"github.com/relay-id/authsvc/internal/token"
	"github.com/relay-id/authsvc/internal/user"
)

// issueAndPersist issues a fresh token pair for u and saves the refresh
// token's fingerprint, the shared tail of Register/LoginByPassword/
// LoginByCode/RefreshToken. When the account is at its session cap, the
// oldest active session is evicted first.
func (s *Service) issueAndPersist(ctx context.Context, u *user.User) (Tokens, error) {
	if err := s.evictOverflowSessions(ctx, u.ID); err != nil {
		return Tokens{}, err
	}
	pair, err := s.codec.Issue(token.User{
		ID:     u.ID,
		UUID:   u.UUID,
		Mobile: u.Mobile,
		Role:   string(u.Role),
	})
	if err != nil {
		return Tokens{}, err
	}

	fp := token.Fingerprint(pair.RefreshToken)
	if err := s.tokens.SaveRefresh(ctx, u.ID, fp, s.cfg.RefreshTTL); err != nil {
		return Tokens{}, err
	}

	return Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// evictOverflowSessions deletes the oldest active sessions until one slot
// is free under the configured cap.
func (s *Service) evictOverflowSessions(ctx context.Context, userID int64) error {
	if s.cfg.MaxSessionsPerUser <= 0 {
		return nil
	}
	sessions, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(sessions) < s.cfg.MaxSessionsPerUser {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	for i := 0; i <= len(sessions)-s.cfg.MaxSessionsPerUser; i++ {
		if err := s.tokens.DeleteByID(ctx, userID, sessions[i].ID); err != nil {
			return err
		}
	}
	return nil
}
