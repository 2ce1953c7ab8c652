package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

const bearerSchema = "Bearer "

// Verifier resolves a bearer credential to an account id.
type Verifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Middleware rejects requests without a valid bearer token. unauthorized
// writes the rejection so the API keeps a single response envelope.
func Middleware(v Verifier, unauthorized func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				unauthorized(w, r, nil)
				return
			}

			accountID, err := v.Verify(token)
			if err != nil {
				unauthorized(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), accountID)))
		})
	}
}

// Optional attaches the principal when a bearer token is supplied and passes
// anonymous requests through. A supplied but invalid token is still rejected.
func Optional(v Verifier, unauthorized func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	required := Middleware(v, unauthorized)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > len(bearerSchema) && strings.EqualFold(h[:len(bearerSchema)], bearerSchema) {
		return strings.TrimSpace(h[len(bearerSchema):])
	}
	return ""
}

func WithPrincipal(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey, accountID)
}

// Principal returns the authenticated account id from the request context.
func Principal(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
