package authsvc

import (
	"context"

	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/validate"
)

// RegisterResult is the outward-facing result of a successful Register.
type RegisterResult struct {
	User   PublicUser
	Tokens Tokens
}

// Register validates the request in a fixed order (mobile, password,
// code, display name), verifies the SMS code, creates the account, and
// issues a fresh token pair.
func (s *Service) Register(ctx context.Context, mobile, code, plainPassword, displayName string) (RegisterResult, error) {
	if err := validate.Mobile(mobile); err != nil {
		return RegisterResult{}, err
	}
	if err := validate.Password(plainPassword, s.cfg.PasswordPolicy); err != nil {
		return RegisterResult{}, err
	}
	if err := validate.VerifyCode(code, s.cfg.CodeLength); err != nil {
		return RegisterResult{}, err
	}
	if err := validate.DisplayName(displayName); err != nil {
		return RegisterResult{}, err
	}

	if err := s.sms.Verify(ctx, sms.SceneRegister, mobile, code); err != nil {
		return RegisterResult{}, err
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return RegisterResult{}, err
	}

	u, err := s.users.Create(ctx, mobile, hash, displayName)
	if err != nil {
		return RegisterResult{}, err
	}

	tokens, err := s.issueAndPersist(ctx, u)
	if err != nil {
		return RegisterResult{}, err
	}

	_ = s.sms.Consume(ctx, sms.SceneRegister, mobile)

	return RegisterResult{User: toPublicUser(u), Tokens: tokens}, nil
}
