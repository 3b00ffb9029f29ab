package shared

import (
	"context"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/rbac"
)

// Actor describes the authenticated caller of a request.
type Actor struct {
	ID        int64
	TenantID  uuid.UUID
	Role      rbac.Role
	IP        string
	UserAgent string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
