// Package memory holds process-local repositories for development mode and
// tests. Each mutation happens under one mutex, which gives the same
// single-statement atomicity the SQL implementations rely on.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
	"github.com/google/uuid"
)

type Users struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	byName map[string]string
	clock  timex.Clock
}

func NewUsers(clock timex.Clock) *Users {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Users{
		byID:   make(map[string]*models.User),
		byName: make(map[string]string),
		clock:  clock,
	}
}

func (r *Users) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[user.UserName]; ok {
		return nil, common.ErrUsernameExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.TokenVersion = 0
	user.CreatedAt = r.clock()

	r.byID[user.ID] = cloneUser(user)
	r.byName[user.UserName] = user.ID
	return user, nil
}

func (r *Users) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (r *Users) List(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.User, 0, len(r.byID))
	for _, u := range r.byID {
		result = append(result, *cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserName < result[j].UserName })
	return result, nil
}

func (r *Users) RegisterFailedLogin(_ context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return 0, nil, common.ErrorNotFound
	}
	if u.FailedLoginAttempts+1 >= threshold {
		u.FailedLoginAttempts = 0
		until := lockUntil
		u.LockedUntil = &until
	} else {
		u.FailedLoginAttempts++
	}
	return u.FailedLoginAttempts, copyTime(u.LockedUntil), nil
}

func (r *Users) RegisterSuccessfulLogin(_ context.Context, id string, now time.Time) error {
	return r.update(id, func(u *models.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &now
	})
}

func (r *Users) IncrementTokenVersion(_ context.Context, id string) (int64, error) {
	var v int64
	err := r.update(id, func(u *models.User) {
		u.TokenVersion++
		v = u.TokenVersion
	})
	return v, err
}

func (r *Users) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.TokenVersion++
	})
}

func (r *Users) UpdateRole(_ context.Context, id string, role models.Role) error {
	return r.update(id, func(u *models.User) {
		u.Role = role
		u.TokenVersion++
	})
}

func (r *Users) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(u *models.User) {
		u.Active = active
		u.TokenVersion++
	})
}

func (r *Users) update(id string, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.LockedUntil = copyTime(u.LockedUntil)
	c.LastLoginAt = copyTime(u.LastLoginAt)
	c.PasswordChangedAt = copyTime(u.PasswordChangedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
