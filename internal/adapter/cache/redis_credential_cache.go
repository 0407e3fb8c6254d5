package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/adsbridge/internal/domain"
	"github.com/smallbiznis/adsbridge/internal/repository"
)

const credentialKeyPrefix = "adsbridge:credential:"

// RedisCredentialCache implements repository.CredentialCache backed by Redis.
type RedisCredentialCache struct {
	client redis.UniversalClient
}

var _ repository.CredentialCache = (*RedisCredentialCache)(nil)

// NewRedisCredentialCache constructs a Redis-backed credential cache.
func NewRedisCredentialCache(client redis.UniversalClient) *RedisCredentialCache {
	return &RedisCredentialCache{client: client}
}

type cachedCredential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"userId"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken *string    `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	TokenType    string     `json:"tokenType"`
	AdAccountID  *string    `json:"adAccountId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Get loads and decodes a cached credential. A miss returns nil, nil.
func (c *RedisCredentialCache) Get(ctx context.Context, userID string) (*domain.Credential, error) {
	payload, err := c.client.Get(ctx, credentialKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	var entry cachedCredential
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &domain.Credential{
		ID:           entry.ID,
		UserID:       entry.UserID,
		AccessToken:  entry.AccessToken,
		RefreshToken: entry.RefreshToken,
		ExpiresAt:    entry.ExpiresAt,
		TokenType:    entry.TokenType,
		AdAccountID:  entry.AdAccountID,
		CreatedAt:    entry.CreatedAt,
		UpdatedAt:    entry.UpdatedAt,
	}, nil
}

// Set stores the credential with TTL.
func (c *RedisCredentialCache) Set(ctx context.Context, cred *domain.Credential, ttl time.Duration) error {
	if cred == nil {
		return nil
	}
	payload, err := json.Marshal(cachedCredential{
		ID:           cred.ID,
		UserID:       cred.UserID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		TokenType:    cred.TokenType,
		AdAccountID:  cred.AdAccountID,
		CreatedAt:    cred.CreatedAt,
		UpdatedAt:    cred.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := c.client.Set(ctx, credentialKey(cred.UserID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Delete removes the cached credential.
func (c *RedisCredentialCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, credentialKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func credentialKey(userID string) string {
	return credentialKeyPrefix + strings.TrimSpace(userID)
}
