package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

// CachedCredentialRepo is a read-through cache in front of another repository.
// Cache errors are logged and never fail the call.
type CachedCredentialRepo struct {
	next   CredentialRepository
	cache  CredentialCache
	ttl    time.Duration
	logger *zap.Logger
}

var _ CredentialRepository = (*CachedCredentialRepo)(nil)

func NewCachedCredentialRepo(next CredentialRepository, cache CredentialCache, ttl time.Duration, logger *zap.Logger) *CachedCredentialRepo {
	if logger == nil {
		logger = zap.L()
	}
	return &CachedCredentialRepo{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (r *CachedCredentialRepo) FindByUser(ctx context.Context, userID string) (*domain.Credential, error) {
	cached, err := r.cache.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("credential cache read failed", zap.String("user_id", userID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	cred, err := r.next.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, cred, r.ttl); err != nil {
		r.logger.Warn("credential cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return cred, nil
}

func (r *CachedCredentialRepo) Upsert(ctx context.Context, userID string, fields domain.CredentialFields) (*domain.Credential, error) {
	cred, err := r.next.Upsert(ctx, userID, fields)
	if err != nil {
		// The stored value is unknown now; drop the stale copy.
		if delErr := r.cache.Delete(ctx, userID); delErr != nil {
			r.logger.Warn("credential cache delete failed", zap.String("user_id", userID), zap.Error(delErr))
		}
		return nil, err
	}
	if err := r.cache.Set(ctx, cred, r.ttl); err != nil {
		r.logger.Warn("credential cache write failed", zap.String("user_id", userID), zap.Error(err))
		if delErr := r.cache.Delete(ctx, userID); delErr != nil {
			r.logger.Warn("credential cache delete failed", zap.String("user_id", userID), zap.Error(delErr))
		}
	}
	return cred, nil
}
