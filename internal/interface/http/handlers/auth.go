package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// OperatorSubject is the subject of every operator token.
const OperatorSubject = "operator"

// Claims are the operator access token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthConfig configures TokenAuth.
type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the operator API key.
	APIKeyHash string
	Secret     string
	TTL        time.Duration
	Issuer     string

	// Clock overrides time.Now.
	Clock func() time.Time
}

// TokenAuth exchanges the operator API key for short-lived HS256 tokens
// and checks them on protected routes.
type TokenAuth struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenAuth creates a TokenAuth.
func NewTokenAuth(config AuthConfig) (*TokenAuth, error) {
	if _, err := bcrypt.Cost([]byte(config.APIKeyHash)); err != nil {
		return nil, fmt.Errorf("api key hash: %w", err)
	}
	if config.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if config.TTL <= 0 {
		config.TTL = 12 * time.Hour
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &TokenAuth{
		hash:   []byte(config.APIKeyHash),
		secret: []byte(config.Secret),
		ttl:    config.TTL,
		issuer: config.Issuer,
		now:    config.Clock,
	}, nil
}

// HashAPIKey returns the bcrypt hash to configure for an API key.
func HashAPIKey(apiKey string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Issue checks the API key and signs a new access token.
func (a *TokenAuth) Issue(apiKey string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(apiKey)); err != nil {
		return "", time.Time{}, shared.ErrInvalidCredentials
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OperatorSubject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate parses and verifies an access token.
func (a *TokenAuth) Validate(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithSubject(OperatorSubject),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, shared.WrapError("operator", "Validate", shared.ErrUnauthorized, "invalid token", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, shared.NewDomainError("operator", "Validate", shared.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type claimsKey struct{}

// Middleware rejects requests without a valid Bearer token.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing_token", "Bearer token is required")
			return
		}

		claims, err := a.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the operator claims stored by Middleware.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
