package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"poolpay/pkg/domain"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the claims we expect from the token validator.
type Claims struct {
	Account string
	JTI     string
}

type contextKeyAccount struct{}

// GetAccount retrieves the authenticated account from the context.
// Returns the zero account when the request was not authenticated.
func GetAccount(ctx context.Context) domain.Account {
	account, _ := ctx.Value(contextKeyAccount{}).(domain.Account)
	return account
}

// WithAccount stores an authenticated account on the context.
func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, contextKeyAccount{}, account)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAccount returns middleware that validates bearer tokens and stores
// the caller's typed account on the request context.
func RequireAccount(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			account, err := domain.ParseAccount(claims.Account)
			if err != nil || account.IsZero() {
				logger.WarnContext(ctx, "unauthorized access - malformed account claim",
					"error", err,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(ctx, account)))
		})
	}
}
