package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relay-id/authsvc/internal/apperr"
)

// Fake is an in-memory Store for internal/authsvc's unit tests.
type Fake struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*User
	byMobile map[string]int64
}

func NewFake() *Fake {
	return &Fake{
		byID:     make(map[int64]*User),
		byMobile: make(map[string]int64),
	}
}

func (f *Fake) FindByMobile(ctx context.Context, mobile string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byMobile[mobile]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound, "no account with this mobile number")
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *Fake) FindByID(ctx context.Context, id int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound, "account not found")
	}
	cp := *u
	return &cp, nil
}

func (f *Fake) FindByUUID(ctx context.Context, id uuid.UUID) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.UUID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.UserNotFound, "account not found")
}

func (f *Fake) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byMobile[mobile]
	return ok, nil
}

func (f *Fake) Create(ctx context.Context, mobile, passwordHash, displayName string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byMobile[mobile]; exists {
		return nil, apperr.New(apperr.MobileTaken, "mobile number already registered")
	}
	f.nextID++
	u := &User{
		ID:           f.nextID,
		UUID:         uuid.New(),
		Mobile:       mobile,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.byID[u.ID] = u
	f.byMobile[mobile] = u.ID
	cp := *u
	return &cp, nil
}

func (f *Fake) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return apperr.New(apperr.UserNotFound, "account not found")
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *Fake) UpdateDisabled(ctx context.Context, id int64, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return apperr.New(apperr.UserNotFound, "account not found")
	}
	u.Disabled = disabled
	u.UpdatedAt = time.Now()
	return nil
}

func (f *Fake) List(ctx context.Context, offset, limit int) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.byID {
		ids = append(ids, id)
	}
	// simple insertion-order-independent sort by id
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	var out []User
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		out = append(out, *f.byID[ids[i]])
	}
	return out, nil
}

var _ Store = (*Fake)(nil)
