package authsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/cache"
)

// LoginLimiter tracks consecutive password-login failures per mobile
// number and locks the account out once the threshold is crossed.
type LoginLimiter struct {
	cache         cache.Cache
	maxFailed     int64
	window        time.Duration
	lockDuration  time.Duration
}

func NewLoginLimiter(c cache.Cache, maxFailed int64, window, lockDuration time.Duration) *LoginLimiter {
	return &LoginLimiter{cache: c, maxFailed: maxFailed, window: window, lockDuration: lockDuration}
}

func failedKey(mobile string) string { return fmt.Sprintf("login:failed:%s", mobile) }
func lockedKey(mobile string) string { return fmt.Sprintf("login:lock:%s", mobile) }

// Check fails with AccountLocked if mobile is currently locked out.
func (l *LoginLimiter) Check(ctx context.Context, mobile string) error {
	locked, err := l.cache.Exists(ctx, lockedKey(mobile))
	if err != nil {
		return apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}
	if !locked {
		return nil
	}
	ttl, err := l.cache.Ttl(ctx, lockedKey(mobile))
	if err != nil || ttl <= 0 {
		ttl = l.lockDuration
	}
	return apperr.Newf(apperr.AccountLocked, "account locked, retry in %ds", int64(ttl.Seconds()))
}

// RecordFailure increments the failure counter for mobile and locks it out
// once the count reaches maxFailed.
func (l *LoginLimiter) RecordFailure(ctx context.Context, mobile string) error {
	count, err := l.cache.Incr(ctx, failedKey(mobile))
	if err != nil {
		return apperr.New(apperr.ServiceUnavailable, "service temporarily unavailable")
	}
	if count == 1 {
		_ = l.cache.Expire(ctx, failedKey(mobile), l.window)
	}
	if count >= l.maxFailed {
		_ = l.cache.SetWithTtl(ctx, lockedKey(mobile), "1", l.lockDuration)
	}
	return nil
}

// Clear removes the failure counter after a successful login.
func (l *LoginLimiter) Clear(ctx context.Context, mobile string) {
	_ = l.cache.Del(ctx, failedKey(mobile))
}
