package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

func newTestMemoryRepo(t *testing.T) *MemoryCredentialRepo {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewMemoryCredentialRepo(node)
}

func TestMemoryCredentialRepo_FindMissing(t *testing.T) {
	repo := newTestMemoryRepo(t)
	_, err := repo.FindByUser(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestMemoryCredentialRepo_UpsertReplaces(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	expires := clock.Add(time.Hour)
	first, err := repo.Upsert(ctx, "user-1", domain.CredentialFields{
		AccessToken: "token-a",
		ExpiresAt:   &expires,
		AdAccountID: domain.StringPtr("act_1"),
	})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultTokenType, first.TokenType)

	clock = clock.Add(time.Minute)
	second, err := repo.Upsert(ctx, "user-1", domain.CredentialFields{AccessToken: "token-b", TokenType: "bearer"})
	require.NoError(t, err)

	require.Equal(t, 1, repo.Len())
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.Equal(t, "token-b", second.AccessToken)
	require.Nil(t, second.ExpiresAt)
	require.Nil(t, second.AdAccountID)

	stored, err := repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "token-b", stored.AccessToken)
}

type fakeCache struct {
	items   map[string]domain.Credential
	getErr  error
	setErr  error
	gets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string]domain.Credential{}}
}

func (f *fakeCache) Get(_ context.Context, userID string) (*domain.Credential, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if cred, ok := f.items[userID]; ok {
		return &cred, nil
	}
	return nil, nil
}

func (f *fakeCache) Set(_ context.Context, cred *domain.Credential, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.items[cred.UserID] = *cred
	return nil
}

func (f *fakeCache) Delete(_ context.Context, userID string) error {
	f.deletes++
	delete(f.items, userID)
	return nil
}

type countingRepo struct {
	CredentialRepository
	finds int
}

func (c *countingRepo) FindByUser(ctx context.Context, userID string) (*domain.Credential, error) {
	c.finds++
	return c.CredentialRepository.FindByUser(ctx, userID)
}

func TestCachedCredentialRepo_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingRepo{CredentialRepository: newTestMemoryRepo(t)}
	_, err := backing.Upsert(ctx, "user-1", domain.CredentialFields{AccessToken: "tok"})
	require.NoError(t, err)

	cache := newFakeCache()
	repo := NewCachedCredentialRepo(backing, cache, time.Minute, zap.NewNop())

	cred, err := repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "tok", cred.AccessToken)
	require.Equal(t, 1, backing.finds)

	cred, err = repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "tok", cred.AccessToken)
	require.Equal(t, 1, backing.finds)
}

func TestCachedCredentialRepo_UpsertRefreshesCache(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	repo := NewCachedCredentialRepo(newTestMemoryRepo(t), cache, time.Minute, zap.NewNop())

	_, err := repo.Upsert(ctx, "user-1", domain.CredentialFields{AccessToken: "old"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "user-1", domain.CredentialFields{AccessToken: "new"})
	require.NoError(t, err)

	require.Equal(t, "new", cache.items["user-1"].AccessToken)
}

func TestCachedCredentialRepo_CacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	backing := newTestMemoryRepo(t)
	_, err := backing.Upsert(ctx, "user-1", domain.CredentialFields{AccessToken: "tok"})
	require.NoError(t, err)

	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	repo := NewCachedCredentialRepo(backing, cache, time.Minute, zap.NewNop())

	cred, err := repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "tok", cred.AccessToken)

	_, err = repo.FindByUser(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}
