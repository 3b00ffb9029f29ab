package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/barrelbook/barrelbook/internal/shared"
)

// Repository loads credentials.
type Repository interface {
	FindByKeyID(ctx context.Context, keyID string) (APIKey, error)
}

// Service wraps credential verification.
type Service struct {
	repo Repository
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves a bearer token of the form "<key_id>.<secret>"
// into an actor. All failure modes collapse to ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, token string) (*shared.Actor, error) {
	keyID, secret, ok := strings.Cut(token, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	key, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !key.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &shared.Actor{ID: key.UserID, TenantID: key.TenantID, Role: key.Role}, nil
}

// HashSecret produces the stored form of a new key secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
