// Package authsvc is the auth orchestrator: it composes the token codec,
// token store, user store, SMS controller, password hasher, and login
// limiter behind the entry points a transport layer calls. It is agnostic
// of transport and of the concrete storage implementation.
package authsvc

import (
	"time"

	"github.com/relay-id/authsvc/internal/password"
	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/token"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/relay-id/authsvc/internal/user"
	"github.com/relay-id/authsvc/internal/validate"
)

// Config holds the policy knobs this orchestrator needs beyond what its
// collaborators already encapsulate.
type Config struct {
	RefreshTTL     time.Duration
	PasswordPolicy validate.PasswordPolicy
	CodeLength     int
	// MaxSessionsPerUser caps concurrent refresh sessions per account;
	// the oldest session is evicted to make room. Zero means unlimited.
	MaxSessionsPerUser int
}

// Service composes the collaborators behind the auth entry points.
type Service struct {
	cfg     Config
	users   user.Store
	tokens  tokenstore.Store
	codec   *token.Codec
	sms     *sms.Controller
	hasher  password.Hasher
	limiter *LoginLimiter
}

func New(
	cfg Config,
	users user.Store,
	tokens tokenstore.Store,
	codec *token.Codec,
	smsCtrl *sms.Controller,
	hasher password.Hasher,
	limiter *LoginLimiter,
) *Service {
	return &Service{
		cfg:     cfg,
		users:   users,
		tokens:  tokens,
		codec:   codec,
		sms:     smsCtrl,
		hasher:  hasher,
		limiter: limiter,
	}
}

// Tokens is the pair handed back across every entry point that
// authenticates or re-authenticates a subject.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// PublicUser is the outward-facing view of a user.User — the password hash
// is never emitted past this package boundary.
type PublicUser struct {
	ID          int64
	UUID        string
	Mobile      string
	DisplayName string
	Role        string
	Disabled    bool
}

func toPublicUser(u *user.User) PublicUser {
	return PublicUser{
		ID:          u.ID,
		UUID:        u.UUID.String(),
		Mobile:      u.Mobile,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Disabled:    u.Disabled,
	}
}
