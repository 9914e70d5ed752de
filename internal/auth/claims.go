package auth

import (
	"context"
	"time"
)

const adminGroup = "admins"

// Claims is the verified identity attached to a request. Only fields
// the handlers actually consume are carried over from the token.
type Claims struct {
	Subject   string
	Username  string
	Groups    []string
	ExpiresAt time.Time
}

func (c *Claims) IsAdmin() bool {
	for _, g := range c.Groups {
		if g == adminGroup {
			return true
		}
	}
	return false
}

type claimsContextKey struct{}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok && claims != nil
}
