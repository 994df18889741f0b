package userctx

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the caller of a request. The zero value is the anonymous
// caller used on public read paths.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

func (i Identity) Anonymous() bool {
	return i.UserID == uuid.Nil
}

type ctxKey string

const identityKey ctxKey = "identity"

// Create a new context with the caller identity
func New(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Extract the caller identity from the context
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
