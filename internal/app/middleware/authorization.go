package middleware

import (
	"context"

	"motorent/internal/domain/identity"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, message any) error

func (f AuthorizerFunc) Authorize(ctx context.Context, message any) error { return f(ctx, message) }

type actorMessage interface {
	ActorIdentity() identity.Identity
}

// RequireActor rejects messages that carry an unresolved caller. Messages without
// an actor (system commands such as the reconciliation sweep) pass through.
func RequireActor() Authorizer {
	return AuthorizerFunc(func(_ context.Context, message any) error {
		m, ok := message.(actorMessage)
		if !ok {
			return nil
		}
		return m.ActorIdentity().Validate()
	})
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardCommands(a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardQueries(a.Authorize)
}
