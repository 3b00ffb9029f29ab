package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barrelbook/barrelbook/internal/rbac"
	"github.com/barrelbook/barrelbook/internal/shared"
)

type fakeRepo struct {
	keys map[string]APIKey
}

func (f *fakeRepo) FindByKeyID(_ context.Context, keyID string) (APIKey, error) {
	key, ok := f.keys[keyID]
	if !ok {
		return APIKey{}, ErrInvalidCredentials
	}
	return key, nil
}

func newAuthFixture(t *testing.T) (*Service, uuid.UUID) {
	t.Helper()
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	tenantID := uuid.New()
	repo := &fakeRepo{keys: map[string]APIKey{
		"bk_live_1": {KeyID: "bk_live_1", SecretHash: hash, UserID: 7, TenantID: tenantID, Role: rbac.RoleOperator, Active: true},
		"bk_dead_2": {KeyID: "bk_dead_2", SecretHash: hash, UserID: 8, TenantID: tenantID, Role: rbac.RoleViewer, Active: false},
	}}
	return NewService(repo), tenantID
}

func TestAuthenticate(t *testing.T) {
	svc, tenantID := newAuthFixture(t)

	actor, err := svc.Authenticate(context.Background(), "bk_live_1.s3cret")
	require.NoError(t, err)
	require.Equal(t, int64(7), actor.ID)
	require.Equal(t, tenantID, actor.TenantID)
	require.Equal(t, rbac.RoleOperator, actor.Role)
}

func TestAuthenticateFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	cases := []string{
		"bk_live_1.wrong",
		"bk_dead_2.s3cret",
		"unknown.s3cret",
		"noseparator",
		"",
	}
	for _, token := range cases {
		_, err := svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidCredentials, token)
	}
}

func TestMiddlewareAttachesActor(t *testing.T) {
	svc, tenantID := newAuthFixture(t)

	var seen *shared.Actor
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bk_live_1.s3cret")
	req.Header.Set("User-Agent", "barrelbook-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, tenantID, seen.TenantID)
	require.Equal(t, "barrelbook-test", seen.UserAgent)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	handler := Middleware(svc)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
