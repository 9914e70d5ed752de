package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/logger"
)

// Verifier turns a raw bearer token into verified Claims. Every
// failure, whatever its cause, surfaces as apperror.ErrUnauthenticated
// so callers cannot probe which check rejected them.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

type JWKSConfig struct {
	JWKSURL  string
	Issuer   string
	ClientID string

	// RefreshInterval defaults to one hour.
	RefreshInterval time.Duration
}

var _ Verifier = (*JWKSVerifier)(nil)

// JWKSVerifier validates RS256 access tokens against a remote JWKS.
type JWKSVerifier struct {
	cfg  JWKSConfig
	jwks atomic.Pointer[keyfunc.JWKS]
}

func NewJWKSVerifier(ctx context.Context, cfg JWKSConfig) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}

	v := &JWKSVerifier{cfg: cfg}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   cfg.RefreshInterval,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Default().Error("jwks refresh failed", "jwks_url", cfg.JWKSURL, "error", err)
		},
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, options)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	v.jwks.Store(jwks)

	return v, nil
}

// Close stops the background JWKS refresh.
func (v *JWKSVerifier) Close() {
	if jwks := v.jwks.Load(); jwks != nil {
		jwks.EndBackground()
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := v.verify(rawToken)
	if err != nil {
		logger.FromContext(ctx).Warn("token rejected", "error", err)
		return nil, apperror.Wrap(err, apperror.ErrUnauthenticated)
	}
	return claims, nil
}

func (v *JWKSVerifier) verify(rawToken string) (*Claims, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	if iss, _ := mapClaims["iss"].(string); iss != v.cfg.Issuer {
		return nil, fmt.Errorf("issuer mismatch: %s", iss)
	}

	// Access tokens carry the client in client_id, not aud.
	if v.cfg.ClientID != "" {
		if clientID, _ := mapClaims["client_id"].(string); clientID != v.cfg.ClientID {
			return nil, errors.New("client_id mismatch")
		}
	}

	if use, _ := mapClaims["token_use"].(string); use != "access" {
		return nil, fmt.Errorf("unexpected token_use: %q", use)
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	username, _ := mapClaims["username"].(string)
	if username == "" {
		username, _ = mapClaims["preferred_username"].(string)
	}

	var groups []string
	if rawGroups, ok := mapClaims["cognito:groups"].([]interface{}); ok {
		for _, g := range rawGroups {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			}
		}
	}

	var expiresAt time.Time
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return &Claims{
		Subject:   sub,
		Username:  username,
		Groups:    groups,
		ExpiresAt: expiresAt,
	}, nil
}
