package domain

import (
	"strings"
	"time"
)

// DefaultTokenType is stored when the token endpoint omits token_type.
const DefaultTokenType = "bearer"

// AdAccountPrefix is required by the Graph API on every ad account id.
const AdAccountPrefix = "act_"

// Credential is the persisted OAuth token record for one user.
type Credential struct {
	ID           int64
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	TokenType    string
	AdAccountID  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialFields is the write payload for an upsert. A write replaces every
// field of an existing credential.
type CredentialFields struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	TokenType    string
	AdAccountID  *string
}

// IsExpired reports whether the credential is past its expiry at now.
// A credential without an expiry never expires.
func (c *Credential) IsExpired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// AdAccount returns the stored ad account id or "".
func (c *Credential) AdAccount() string {
	if c == nil || c.AdAccountID == nil {
		return ""
	}
	return *c.AdAccountID
}

// Normalize fills defaults before a write.
func (f CredentialFields) Normalize() CredentialFields {
	if strings.TrimSpace(f.TokenType) == "" {
		f.TokenType = DefaultTokenType
	}
	if f.AdAccountID != nil && strings.TrimSpace(*f.AdAccountID) == "" {
		f.AdAccountID = nil
	}
	return f
}

// NormalizeAdAccountID prepends the act_ prefix when it is missing.
func NormalizeAdAccountID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, AdAccountPrefix) {
		return trimmed
	}
	return AdAccountPrefix + trimmed
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
