package auth

import (
	"context"

	authlib "example.com/activities/pkg/auth"

	"example.com/activities/internal/domain"
)

// Claims mirrors the shared auth claims type for service convenience.
type Claims = authlib.Claims

// Config mirrors the shared auth config.
type Config = authlib.Config

// WithClaims stores the claims in the request context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

// FromContext retrieves claims from context.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}

// ActorFromContext derives the acting user from the token subject.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	claims, ok := FromContext(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: claims.Subject}, true
}
