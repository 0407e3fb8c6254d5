package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

// CredentialRepository persists one credential per user.
type CredentialRepository interface {
	// FindByUser returns domain.ErrCredentialNotFound when nothing is stored.
	FindByUser(ctx context.Context, userID string) (*domain.Credential, error)
	// Upsert creates or fully replaces the user's credential.
	Upsert(ctx context.Context, userID string, fields domain.CredentialFields) (*domain.Credential, error)
}

// CredentialCache stores short-lived copies of credentials.
type CredentialCache interface {
	// Get returns nil, nil on a cache miss.
	Get(ctx context.Context, userID string) (*domain.Credential, error)
	Set(ctx context.Context, cred *domain.Credential, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}
