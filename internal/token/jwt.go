package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"poolpay/pkg/domain"
	dErrors "poolpay/pkg/domain-errors"
)

// AccountClaims are the JWT claims of a settlement access token. The account
// is the hex-encoded 32-byte identity every balance and grant keys on.
type AccountClaims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

// Service signs and validates account bearer tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewService(signingKey string, issuer string, audience string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// GenerateToken issues a signed token for the account. The returned JTI can
// be tracked for revocation.
func (s *Service) GenerateToken(account domain.Account) (string, string, error) {
	if account.IsZero() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "account cannot be zero")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	jti := hex.EncodeToString(b)
	now := s.now()

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccountClaims{
		Account: account.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return signedToken, jti, nil
}

// ValidateToken verifies signature, algorithm, expiry, and issuer, and
// returns the parsed claims.
func (s *Service) ValidateToken(tokenString string) (*AccountClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccountClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}
	return claims, nil
}
