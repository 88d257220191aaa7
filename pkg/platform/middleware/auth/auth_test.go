package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolpay/pkg/domain"
)

type fakeValidator struct {
	claims *Claims
	err    error
}

func (f *fakeValidator) ValidateToken(string) (*Claims, error) {
	return f.claims, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runMiddleware(t *testing.T, validator TokenValidator, authHeader string) (*httptest.ResponseRecorder, domain.Account) {
	t.Helper()
	var seen domain.Account
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAccount(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ledger/balance", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	RequireAccount(validator, discardLogger())(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestRequireAccountMissingHeader(t *testing.T) {
	rec, _ := runMiddleware(t, &fakeValidator{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccountInvalidToken(t *testing.T) {
	rec, _ := runMiddleware(t, &fakeValidator{err: errors.New("expired")}, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccountMalformedAccountClaim(t *testing.T) {
	rec, _ := runMiddleware(t, &fakeValidator{claims: &Claims{Account: "not-hex"}}, "Bearer tok")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccountZeroAccountClaim(t *testing.T) {
	zero := domain.Account{}.String()
	rec, _ := runMiddleware(t, &fakeValidator{claims: &Claims{Account: zero}}, "Bearer tok")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccountStoresTypedAccount(t *testing.T) {
	want, err := domain.ParseAccount("0xabcd0000000000000000000000000000000000000000000000000000000000ef")
	require.NoError(t, err)

	rec, seen := runMiddleware(t, &fakeValidator{claims: &Claims{Account: want.String()}}, "Bearer tok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, seen)
}

func TestGetAccountDefaultsToZero(t *testing.T) {
	assert.True(t, GetAccount(context.Background()).IsZero())
}
