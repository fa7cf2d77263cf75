package cache

import (
	"context"
	"sync"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
)

// Fake is an in-memory Cache implementation for unit tests. Production
// code does not use it; the tests of internal/sms, internal/authsvc,
// internal/front and this package do.
type Fake struct {
	mu      sync.Mutex
	strings map[string]fakeEntry
	hashes  map[string]map[string]string
	// FailNext, when set, makes the next operation return ServiceUnavailable
	// (used to exercise the fail-closed paths of the SMS and limiter flows).
	FailNext bool
}

type fakeEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

func NewFake() *Fake {
	return &Fake{
		strings: make(map[string]fakeEntry),
		hashes:  make(map[string]map[string]string),
	}
}

func (f *Fake) shouldFail() bool {
	if f.FailNext {
		f.FailNext = false
		return true
	}
	return false
}

func (f *Fake) expired(e fakeEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func (f *Fake) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	f.strings[key] = fakeEntry{value: value}
	return nil
}

func (f *Fake) SetWithTtl(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.New(apperr.InvalidArgument, "ttl must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	f.strings[key] = fakeEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (f *Fake) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return "", apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	e, ok := f.strings[key]
	if !ok || f.expired(e) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (f *Fake) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return false, apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	e, ok := f.strings[key]
	return ok && !f.expired(e), nil
}

func (f *Fake) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.strings, key)
	delete(f.hashes, key)
	return nil
}

func (f *Fake) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	if !ok {
		return nil
	}
	e.expires = time.Now().Add(ttl)
	f.strings[key] = e
	return nil
}

func (f *Fake) Ttl(ctx context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	if !ok || f.expired(e) {
		return -2 * time.Second, nil
	}
	if e.expires.IsZero() {
		return -1 * time.Second, nil
	}
	return time.Until(e.expires), nil
}

func (f *Fake) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return 0, apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	e := f.strings[key]
	var n int64
	if e.value != "" {
		for _, c := range e.value {
			n = n*10 + int64(c-'0')
		}
	}
	n++
	e.value = itoa(n)
	f.strings[key] = e
	return n, nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (f *Fake) HSet(ctx context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (f *Fake) HGet(ctx context.Context, key, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *Fake) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) HDel(ctx context.Context, key, field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hashes[key]; ok {
		delete(h, field)
	}
	return nil
}

func (f *Fake) Ping(ctx context.Context) error {
	if f.shouldFail() {
		return apperr.New(apperr.ServiceUnavailable, "fake cache failure")
	}
	return nil
}

var _ Cache = (*Fake)(nil)
