package nestor

import (
	"context"

	"github.com/google/uuid"
)

// ContextID identifies one resolution episode, usually one inbound request.
// The zero value is StaticContext, the context of singletons.
//
// Instances created for a context id live until Application.ReleaseContext is
// called for it or the application is closed.
type ContextID struct {
	ID string
}

// StaticContext is the context id of singleton instances.
var StaticContext = ContextID{}

// NewContextID returns a new unique context id. Every id used with Resolve
// must be passed to Application.ReleaseContext once its episode ends, or its
// instances stay in memory until the application is closed.
func NewContextID() ContextID {
	return ContextID{ID: uuid.NewString()}
}

// IsStatic reports whether id is the static context.
func (id ContextID) IsStatic() bool {
	return id.ID == ""
}

func (id ContextID) String() string {
	if id.IsStatic() {
		return "static"
	}
	return id.ID
}

// contextIDKey is the key for storing a context id in a context.Context.
type contextIDKey struct{}

// WithContextIDValue returns a copy of ctx carrying id.
func WithContextIDValue(ctx context.Context, id ContextID) context.Context {
	return context.WithValue(ctx, contextIDKey{}, id)
}

// ContextIDFromContext returns the context id stored in ctx.
func ContextIDFromContext(ctx context.Context) (ContextID, bool) {
	if ctx == nil {
		return ContextID{}, false
	}
	id, ok := ctx.Value(contextIDKey{}).(ContextID)
	return id, ok
}
