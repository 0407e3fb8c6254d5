package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCredentialRepo implements CredentialRepository on Postgres.
type PostgresCredentialRepo struct {
	db   DBTX
	node *snowflake.Node
}

var _ CredentialRepository = (*PostgresCredentialRepo)(nil)

func NewPostgresCredentialRepo(db DBTX, node *snowflake.Node) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db, node: node}
}

const credentialColumns = `id, user_id, access_token, refresh_token, expires_at, token_type, ad_account_id, created_at, updated_at`

const findCredentialSQL = `SELECT ` + credentialColumns + `
FROM meta_credentials
WHERE user_id = $1
LIMIT 1`

// The id of an existing row is kept; every other column is replaced.
const upsertCredentialSQL = `INSERT INTO meta_credentials (id, user_id, access_token, refresh_token, expires_at, token_type, ad_account_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (user_id) DO UPDATE SET
    access_token  = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at    = EXCLUDED.expires_at,
    token_type    = EXCLUDED.token_type,
    ad_account_id = EXCLUDED.ad_account_id,
    updated_at    = now()
RETURNING ` + credentialColumns

func (r *PostgresCredentialRepo) FindByUser(ctx context.Context, userID string) (*domain.Credential, error) {
	row := r.db.QueryRow(ctx, findCredentialSQL, strings.TrimSpace(userID))
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (r *PostgresCredentialRepo) Upsert(ctx context.Context, userID string, fields domain.CredentialFields) (*domain.Credential, error) {
	fields = fields.Normalize()
	row := r.db.QueryRow(ctx, upsertCredentialSQL,
		r.node.Generate().Int64(),
		strings.TrimSpace(userID),
		fields.AccessToken,
		fields.RefreshToken,
		fields.ExpiresAt,
		fields.TokenType,
		fields.AdAccountID,
	)
	cred, err := scanCredential(row)
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return cred, nil
}

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var cred domain.Credential
	if err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.TokenType,
		&cred.AdAccountID,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cred, nil
}
