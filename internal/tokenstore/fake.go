package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relay-id/authsvc/internal/apperr"
)

// Fake is an in-memory Store used by internal/authsvc's unit tests, since
// PgStore requires a live Postgres instance to exercise. Expiry checks use
// time.Now, which stands in for the database clock well enough inside a
// single process.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]Session // keyed by fingerprint
}

func NewFake() *Fake {
	return &Fake{sessions: make(map[string]Session)}
}

func (f *Fake) SaveRefresh(ctx context.Context, userID int64, fingerprint string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[fingerprint]; exists {
		return apperr.New(apperr.Internal, "duplicate refresh fingerprint")
	}
	f.sessions[fingerprint] = Session{
		ID:          uuid.New(),
		UserID:      userID,
		Fingerprint: fingerprint,
		ExpiresAt:   time.Now().Add(ttl),
		CreatedAt:   time.Now(),
	}
	return nil
}

func (f *Fake) FindByFingerprint(ctx context.Context, fingerprint string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[fingerprint]
	if !ok {
		return nil, apperr.New(apperr.TokenInvalid, "refresh token not recognized")
	}
	return &sess, nil
}

func (f *Fake) IsValid(ctx context.Context, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[fingerprint]
	if !ok {
		return false, nil
	}
	return sess.ExpiresAt.After(time.Now()), nil
}

func (f *Fake) CountActive(ctx context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	now := time.Now()
	for _, sess := range f.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (f *Fake) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, fingerprint)
	return nil
}

func (f *Fake) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for fp, sess := range f.sessions {
		if sess.UserID == userID {
			delete(f.sessions, fp)
			n++
		}
	}
	return n, nil
}

func (f *Fake) SweepExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for fp, sess := range f.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(f.sessions, fp)
			n++
		}
	}
	return n, nil
}

func (f *Fake) ListByUser(ctx context.Context, userID int64) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Session
	now := time.Now()
	for _, sess := range f.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (f *Fake) DeleteByID(ctx context.Context, userID int64, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fp, sess := range f.sessions {
		if sess.ID == sessionID && sess.UserID == userID {
			delete(f.sessions, fp)
			return nil
		}
	}
	return nil
}

var _ Store = (*Fake)(nil)
