package authsvc

import (
	"context"

	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/validate"
)

// ResetPassword verifies ownership of mobile via SMS code, replaces the
// password hash, and revokes every existing session for the account —
// a credential reset must not leave old sessions usable.
func (s *Service) ResetPassword(ctx context.Context, mobile, code, newPlainPassword string) error {
	if err := validate.Password(newPlainPassword, s.cfg.PasswordPolicy); err != nil {
		return err
	}

	if err := s.sms.Verify(ctx, sms.SceneResetPassword, mobile, code); err != nil {
		return err
	}

	u, err := s.users.FindByMobile(ctx, mobile)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPlainPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}

	if _, err := s.tokens.DeleteByUser(ctx, u.ID); err != nil {
		return err
	}

	return s.sms.Consume(ctx, sms.SceneResetPassword, mobile)
}
