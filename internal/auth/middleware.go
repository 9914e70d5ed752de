package auth

import (
	"net/http"
	"strings"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/logger"
)

// Middleware rejects requests without a valid bearer token and attaches
// the verified claims to the request context.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrUnauthenticated))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
