package authsvc

import (
	"context"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/validate"
)

// SendVerifyCode issues an SMS code for scene/mobile, after a per-scene
// existence check: a register code cannot be requested for a mobile that
// already has an account, and a login/reset/delete code cannot be
// requested for one that does not.
func (s *Service) SendVerifyCode(ctx context.Context, scene sms.Scene, mobile string) (int64, error) {
	if err := validate.Mobile(mobile); err != nil {
		return 0, err
	}

	exists, err := s.users.ExistsByMobile(ctx, mobile)
	if err != nil {
		return 0, err
	}

	switch scene {
	case sms.SceneRegister:
		if exists {
			return 0, apperr.New(apperr.MobileTaken, "mobile number already registered")
		}
	case sms.SceneLogin, sms.SceneResetPassword, sms.SceneDeleteUser:
		if !exists {
			return 0, apperr.New(apperr.UserNotFound, "no account with this mobile number")
		}
	}

	return s.sms.Issue(ctx, scene, mobile)
}
