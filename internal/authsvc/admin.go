package authsvc

import "context"

// ListUsers surfaces a page of accounts for administrators.
func (s *Service) ListUsers(ctx context.Context, offset, limit int) ([]PublicUser, error) {
	users, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, toPublicUser(&users[i]))
	}
	return out, nil
}

// SetUserDisabled enables or disables an account. Disabling a user
// revokes every refresh session it owns; already-issued access tokens
// remain valid until they expire naturally, since access tokens are not
// tracked server-side.
func (s *Service) SetUserDisabled(ctx context.Context, userID int64, disabled bool) error {
	if err := s.users.UpdateDisabled(ctx, userID, disabled); err != nil {
		return err
	}
	if disabled {
		_, err := s.tokens.DeleteByUser(ctx, userID)
		return err
	}
	return nil
}
