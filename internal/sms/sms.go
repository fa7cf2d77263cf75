// Package sms implements the one-time verification-code lifecycle: four
// cache key families per (scene, mobile), a fail-closed posture on cache
// errors, and a "do not delete the code on successful verify" rule so a
// retried downstream step can reuse it within its TTL.
package sms

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/cache"
)

// Scene identifies which flow is requesting a code. A code issued for one
// scene is never valid in another, but the send-interval cooldown is
// global across scenes for a given mobile number.
type Scene string

const (
	SceneRegister      Scene = "register"
	SceneLogin         Scene = "login"
	SceneResetPassword Scene = "reset_password"
	SceneDeleteUser    Scene = "delete_user"
)

// Sender delivers a code to a mobile number. Swappable per environment
// (console sender for dev, a real gateway client in production).
type Sender interface {
	Send(ctx context.Context, mobile string, code string, scene Scene) error
}

// Config holds the code lifecycle TTLs and limits.
type Config struct {
	CodeDigits    int
	CodeTTL       time.Duration
	SendInterval  time.Duration
	RetryTTL      time.Duration
	MaxRetryCount int64
	LockDuration  time.Duration
}

// Controller implements Issue/Verify/Consume over a Cache.
type Controller struct {
	cache  cache.Cache
	sender Sender
	cfg    Config
}

func New(c cache.Cache, sender Sender, cfg Config) *Controller {
	return &Controller{cache: c, sender: sender, cfg: cfg}
}

func codeKey(scene Scene, mobile string) string       { return fmt.Sprintf("sms:code:%s:%s", scene, mobile) }
func intervalKey(mobile string) string                { return fmt.Sprintf("sms:interval:%s", mobile) }
func verifyCountKey(scene Scene, mobile string) string { return fmt.Sprintf("sms:verify_count:%s:%s", scene, mobile) }
func lockKey(scene Scene, mobile string) string       { return fmt.Sprintf("sms:lock:%s:%s", scene, mobile) }

func (c *Controller) ttlSeconds(ctx context.Context, key string, fallback time.Duration) int64 {
	ttl, err := c.cache.Ttl(ctx, key)
	if err != nil || ttl <= 0 {
		return int64(fallback.Seconds())
	}
	return int64(ttl.Seconds())
}

func generateCode(digits int) (string, error) {
	if digits <= 0 {
		return "", apperr.New(apperr.Internal, "code digit count must be positive")
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", apperr.Newf(apperr.Internal, "generate code: %v", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// Issue generates and delivers a code for scene/mobile, returning the
// cooldown (in seconds) the caller should display before the next send is
// allowed.
func (c *Controller) Issue(ctx context.Context, scene Scene, mobile string) (int64, error) {
	locked, err := c.cache.Exists(ctx, lockKey(scene, mobile))
	if err != nil {
		return 0, apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}
	if locked {
		ttl := c.ttlSeconds(ctx, lockKey(scene, mobile), c.cfg.LockDuration)
		return 0, apperr.Newf(apperr.RateLimited, "too many attempts, retry in %ds", ttl)
	}

	onCooldown, err := c.cache.Exists(ctx, intervalKey(mobile))
	if err != nil {
		return 0, apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}
	if onCooldown {
		ttl := c.ttlSeconds(ctx, intervalKey(mobile), c.cfg.SendInterval)
		return 0, apperr.Newf(apperr.RateLimited, "too many attempts, retry in %ds", ttl)
	}

	code, err := generateCode(c.cfg.CodeDigits)
	if err != nil {
		return 0, err
	}

	if c.cfg.CodeTTL <= 0 {
		return 0, apperr.New(apperr.Internal, "code ttl must be positive")
	}
	if err := c.cache.SetWithTtl(ctx, codeKey(scene, mobile), code, c.cfg.CodeTTL); err != nil {
		return 0, apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}

	// Best-effort: a failure here does not block the send, it just means
	// the cooldown window might not be enforced for this one send.
	_ = c.cache.SetWithTtl(ctx, intervalKey(mobile), "1", c.cfg.SendInterval)

	if err := c.sender.Send(ctx, mobile, code, scene); err != nil {
		_ = c.cache.Del(ctx, codeKey(scene, mobile))
		return 0, apperr.New(apperr.ServiceUnavailable, "sms delivery failed, try again later")
	}

	return int64(c.cfg.SendInterval.Seconds()), nil
}

// Verify checks supplied against the stored code for scene/mobile.
func (c *Controller) Verify(ctx context.Context, scene Scene, mobile, supplied string) error {
	locked, err := c.cache.Exists(ctx, lockKey(scene, mobile))
	if err != nil {
		return apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}
	if locked {
		ttl := c.ttlSeconds(ctx, lockKey(scene, mobile), c.cfg.RetryTTL)
		return apperr.Newf(apperr.RateLimited, "too many attempts, retry in %ds", ttl)
	}

	stored, err := c.cache.Get(ctx, codeKey(scene, mobile))
	if err != nil {
		if err == cache.ErrNotFound {
			return apperr.New(apperr.CaptchaExpired, "verification code expired, request a new one")
		}
		return apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}

	if !constantTimeEqual(stored, supplied) {
		count, err := c.cache.Incr(ctx, verifyCountKey(scene, mobile))
		if err != nil {
			return apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
		}
		_ = c.cache.Expire(ctx, verifyCountKey(scene, mobile), c.cfg.RetryTTL)

		if count >= c.cfg.MaxRetryCount {
			_ = c.cache.SetWithTtl(ctx, lockKey(scene, mobile), "1", c.cfg.LockDuration)
			_ = c.cache.Del(ctx, codeKey(scene, mobile))
			_ = c.cache.Del(ctx, verifyCountKey(scene, mobile))
			return apperr.Newf(apperr.AccountLocked, "too many failed attempts, locked for %d minutes",
				int64(c.cfg.LockDuration.Minutes()))
		}
		return apperr.Newf(apperr.CaptchaWrong, "wrong code, %d attempts remaining", c.cfg.MaxRetryCount-count)
	}

	// Success: clear the failure counter, but leave the code itself in
	// place so a downstream business failure can be retried with it.
	_ = c.cache.Del(ctx, verifyCountKey(scene, mobile))
	return nil
}

// Consume unconditionally deletes the stored code, called by the
// orchestrator after the business operation that accepted it succeeds.
func (c *Controller) Consume(ctx context.Context, scene Scene, mobile string) error {
	return c.cache.Del(ctx, codeKey(scene, mobile))
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
