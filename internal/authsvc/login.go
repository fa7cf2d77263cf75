package authsvc

import (
	"context"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/sms"
)

// LoginResult is the outward-facing result of a successful login.
type LoginResult struct {
	User   PublicUser
	Tokens Tokens
}

// LoginByPassword runs a fixed sequence: limiter check, user lookup,
// disabled check, password verify. A missing subject and a wrong password
// are deliberately indistinguishable to the caller.
func (s *Service) LoginByPassword(ctx context.Context, mobile, plainPassword string) (LoginResult, error) {
	if err := s.limiter.Check(ctx, mobile); err != nil {
		return LoginResult{}, err
	}

	u, err := s.users.FindByMobile(ctx, mobile)
	if err != nil {
		if apperr.CodeOf(err) == apperr.UserNotFound {
			_ = s.limiter.RecordFailure(ctx, mobile)
			return LoginResult{}, apperr.New(apperr.WrongPassword, "mobile number or password is incorrect")
		}
		return LoginResult{}, err
	}

	if u.Disabled {
		return LoginResult{}, apperr.New(apperr.UserDisabled, "account has been disabled")
	}

	if err := s.hasher.Verify(u.PasswordHash, plainPassword); err != nil {
		_ = s.limiter.RecordFailure(ctx, mobile)
		return LoginResult{}, apperr.New(apperr.WrongPassword, "mobile number or password is incorrect")
	}

	s.limiter.Clear(ctx, mobile)

	tokens, err := s.issueAndPersist(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: toPublicUser(u), Tokens: tokens}, nil
}

// LoginByCode authenticates via a one-time SMS code instead of a password.
func (s *Service) LoginByCode(ctx context.Context, mobile, code string) (LoginResult, error) {
	if err := s.sms.Verify(ctx, sms.SceneLogin, mobile, code); err != nil {
		return LoginResult{}, err
	}

	u, err := s.users.FindByMobile(ctx, mobile)
	if err != nil {
		return LoginResult{}, err
	}
	if u.Disabled {
		return LoginResult{}, apperr.New(apperr.UserDisabled, "account has been disabled")
	}

	s.limiter.Clear(ctx, mobile)

	tokens, err := s.issueAndPersist(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	_ = s.sms.Consume(ctx, sms.SceneLogin, mobile)

	return LoginResult{User: toPublicUser(u), Tokens: tokens}, nil
}
