package auth

import (
	"context"

	"github.com/colorpipe/colorpipe/internal/apperror"
)

var _ Verifier = (*StaticVerifier)(nil)

// StaticVerifier maps fixed tokens to claims. Used in tests.
type StaticVerifier struct {
	Tokens map[string]*Claims
}

func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{Tokens: make(map[string]*Claims)}
}

func (v *StaticVerifier) Add(token string, claims *Claims) *StaticVerifier {
	v.Tokens[token] = claims
	return v
}

func (v *StaticVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims, ok := v.Tokens[rawToken]
	if !ok {
		return nil, apperror.ErrUnauthenticated
	}
	return claims, nil
}
