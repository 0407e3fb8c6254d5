package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/config"
	"github.com/smallbiznis/adsbridge/internal/domain"
	"github.com/smallbiznis/adsbridge/internal/repository"
)

func TestOpenStoreMemory(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo, closeFn, err := OpenStore(context.Background(), config.Config{StoreDriver: config.StoreDriverMemory}, node, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &repository.MemoryCredentialRepo{}, repo)
	require.NoError(t, closeFn(context.Background()))
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.Config{StoreDriver: "sqlite"}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestOpenCacheDisabled(t *testing.T) {
	cache, closeFn, err := OpenCache(context.Background(), config.Config{})
	require.NoError(t, err)
	require.Nil(t, cache)
	require.NoError(t, closeFn(context.Background()))
}

type stubCache struct{ repository.CredentialCache }

func (stubCache) Get(context.Context, string) (*domain.Credential, error) { return nil, nil }

func TestWithCache(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	base := repository.NewMemoryCredentialRepo(node)

	require.Same(t, base, WithCache(base, nil, config.Config{CredentialCacheTTL: time.Minute}, zap.NewNop()))

	wrapped := WithCache(base, stubCache{}, config.Config{CredentialCacheTTL: time.Minute}, zap.NewNop())
	require.IsType(t, &repository.CachedCredentialRepo{}, wrapped)
}
