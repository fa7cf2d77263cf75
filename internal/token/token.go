// Package token implements the access/refresh token codec. The wire
// format is the HS256 JWT compact serialization, so this wraps
// github.com/golang-jwt/jwt/v5 with SigningMethodHS256 rather than
// hand-assembling base64 segments.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/relay-id/authsvc/internal/apperr"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessPayload is the verified claim set of an access token.
type AccessPayload struct {
	UserID    int64
	UUID      uuid.UUID
	Mobile    string
	Role      string
	ExpiresAt time.Time
}

// TokenPair is the result of Issue: one signed access envelope and one
// signed refresh envelope.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// User is the narrow view Issue needs of a user record.
type User struct {
	ID     int64
	UUID   uuid.UUID
	Mobile string
	Role   string
}

type claims struct {
	jwt.RegisteredClaims
	Type   string `json:"type"`
	UID    int64  `json:"uid,omitempty"`
	UUID   string `json:"uuid,omitempty"`
	Mobile string `json:"mobile,omitempty"`
	Role   string `json:"role,omitempty"`
	Nonce  string `json:"nonce"`
}

// Codec issues and verifies access/refresh token pairs under a single
// HMAC secret.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New constructs a Codec. secret must be at least 32 bytes.
func New(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, apperr.New(apperr.Internal, "token secret must be at least 32 bytes")
	}
	return &Codec{secret: secret, issuer: issuer, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

func nonce() string {
	return ulid.Make().String()
}

// Issue produces a fresh access/refresh pair for user. Distinct calls for
// the same user always differ, even at sub-second resolution, because each
// envelope carries a fresh ULID nonce alongside iat.
func (c *Codec) Issue(user User) (TokenPair, error) {
	now := time.Now()

	access := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Type:   typeAccess,
		UID:    user.ID,
		UUID:   user.UUID.String(),
		Mobile: user.Mobile,
		Role:   user.Role,
		Nonce:  nonce(),
	}
	accessTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(c.secret)
	if err != nil {
		return TokenPair{}, apperr.Newf(apperr.Internal, "sign access token: %v", err)
	}

	refresh := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
		Type:  typeRefresh,
		UID:   user.ID,
		Nonce: nonce(),
	}
	refreshTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(c.secret)
	if err != nil {
		return TokenPair{}, apperr.Newf(apperr.Internal, "sign refresh token: %v", err)
	}

	return TokenPair{AccessToken: accessTok, RefreshToken: refreshTok}, nil
}

func (c *Codec) parse(token string) (*claims, error) {
	if token == "" {
		return nil, apperr.New(apperr.TokenMissing, "token not supplied")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.TokenExpired, "token expired")
		}
		return nil, apperr.Newf(apperr.TokenInvalid, "token invalid: %v", err)
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, apperr.New(apperr.TokenInvalid, "token invalid")
	}
	return cl, nil
}

// VerifyAccess validates token and returns its payload.
func (c *Codec) VerifyAccess(token string) (AccessPayload, error) {
	cl, err := c.parse(token)
	if err != nil {
		return AccessPayload{}, err
	}
	if cl.Type != typeAccess {
		return AccessPayload{}, apperr.New(apperr.TokenInvalid, "not an access token")
	}
	uid, err := uuid.Parse(cl.UUID)
	if err != nil {
		return AccessPayload{}, apperr.New(apperr.TokenInvalid, "malformed uuid claim")
	}
	return AccessPayload{
		UserID:    cl.UID,
		UUID:      uid,
		Mobile:    cl.Mobile,
		Role:      cl.Role,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// ParseRefresh validates token and returns the encoded user id.
func (c *Codec) ParseRefresh(token string) (int64, error) {
	cl, err := c.parse(token)
	if err != nil {
		return 0, err
	}
	if cl.Type != typeRefresh {
		return 0, apperr.New(apperr.TokenInvalid, "not a refresh token")
	}
	return cl.UID, nil
}

// Fingerprint returns the lower-hex SHA-256 digest of a raw token, used
// as the server-side lookup key for refresh sessions.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
