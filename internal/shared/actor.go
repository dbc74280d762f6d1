package shared

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies who performs an operation and the tenant scope it runs in.
// The core does not authenticate; it records whatever identity the API layer
// resolved.
type Actor struct {
	UserID         uuid.UUID
	OrganisationID uuid.UUID
	BranchID       uuid.UUID
}

// Valid reports whether the actor carries the minimum identity required for a
// mutating call.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.OrganisationID != uuid.Nil
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
