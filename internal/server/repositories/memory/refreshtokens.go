package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type RefreshTokens struct {
	mu     sync.Mutex
	byHash map[string]*models.RefreshToken
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{byHash: make(map[string]*models.RefreshToken)}
}

func (r *RefreshTokens) Create(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[t.TokenHash]; ok {
		return fmt.Errorf("%w: duplicate token digest", common.ErrorInternal)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.byHash[t.TokenHash] = cloneToken(t)
	return nil
}

func (r *RefreshTokens) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok || !t.IsLive(now) {
		return nil, common.ErrorNotFound
	}
	t.RevokedAt = &now
	return cloneToken(t), nil
}

func (r *RefreshTokens) FindByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneToken(t), nil
}

func (r *RefreshTokens) Revoke(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &now
	return true, nil
}

func (r *RefreshTokens) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokens) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []models.RefreshToken{}
	for _, t := range r.byHash {
		if t.UserID == userID && t.IsLive(now) {
			result = append(result, *cloneToken(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *RefreshTokens) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, t := range r.byHash {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func cloneToken(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	c.RevokedAt = copyTime(t.RevokedAt)
	return &c
}
