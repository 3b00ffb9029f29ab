// Package auth verifies API credentials and attaches the acting user to
// the request context.
package auth

import (
	"errors"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/rbac"
)

// APIKey is a persisted credential. The secret is stored as a bcrypt hash;
// the public key ID travels in the token so lookup stays indexed.
type APIKey struct {
	KeyID      string
	SecretHash string
	UserID     int64
	TenantID   uuid.UUID
	Role       rbac.Role
	Active     bool
}

// ErrInvalidCredentials covers every authentication failure. Callers
// never learn whether the key ID or the secret was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")
