package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository loads API keys from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByKeyID returns the credential joined with its owning user.
func (r *PGRepository) FindByKeyID(ctx context.Context, keyID string) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `SELECT k.key_id, k.secret_hash, k.active, u.id, u.tenant_id, u.role
FROM api_keys k JOIN users u ON u.id = k.user_id
WHERE k.key_id = $1 AND u.active`, keyID).
		Scan(&key.KeyID, &key.SecretHash, &key.Active, &key.UserID, &key.TenantID, &key.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrInvalidCredentials
		}
		return APIKey{}, err
	}
	return key, nil
}
