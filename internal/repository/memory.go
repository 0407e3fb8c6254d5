package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

// MemoryCredentialRepo keeps credentials in process memory.
type MemoryCredentialRepo struct {
	mu    sync.RWMutex
	node  *snowflake.Node
	now   func() time.Time
	items map[string]domain.Credential
}

var _ CredentialRepository = (*MemoryCredentialRepo)(nil)

// NewMemoryCredentialRepo constructs an empty in-memory store.
func NewMemoryCredentialRepo(node *snowflake.Node) *MemoryCredentialRepo {
	return &MemoryCredentialRepo{
		node:  node,
		now:   time.Now,
		items: make(map[string]domain.Credential),
	}
}

func (r *MemoryCredentialRepo) FindByUser(_ context.Context, userID string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.items[strings.TrimSpace(userID)]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return &cred, nil
}

func (r *MemoryCredentialRepo) Upsert(_ context.Context, userID string, fields domain.CredentialFields) (*domain.Credential, error) {
	key := strings.TrimSpace(userID)
	fields = fields.Normalize()
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.items[key]
	if !ok {
		cred = domain.Credential{UserID: key, CreatedAt: now}
		if r.node != nil {
			cred.ID = r.node.Generate().Int64()
		}
	}
	cred.AccessToken = fields.AccessToken
	cred.RefreshToken = fields.RefreshToken
	cred.ExpiresAt = fields.ExpiresAt
	cred.TokenType = fields.TokenType
	cred.AdAccountID = fields.AdAccountID
	cred.UpdatedAt = now
	r.items[key] = cred

	out := cred
	return &out, nil
}

// Len reports the number of stored credentials.
func (r *MemoryCredentialRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
