package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/justtherip/packvault/internal/handlers/render"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/service/auth"
)

type verifier interface {
	VerifyRequest(ctx context.Context, r *http.Request) (userctx.Identity, error)
}

// Auth requires a valid bearer token. Requests without one never reach
// the wrapped handler.
func Auth(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := v.VerifyRequest(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthOptional lets requests without a token through as the anonymous
// caller. A token that is present but invalid is still rejected.
func AuthOptional(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := v.VerifyRequest(r.Context(), r)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrNoToken):
				identity = userctx.Identity{}
			default:
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
