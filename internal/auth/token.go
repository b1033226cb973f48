// Package auth issues and verifies the HS256 bearer tokens that gate the
// history endpoints. There is no identity store; any valid username gets a
// token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// RoleUser is the only role issued.
const RoleUser = "user"

// DefaultTTL is the token lifetime.
const DefaultTTL = time.Hour

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrInvalidSignature  = errors.New("token signature is invalid")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrInvalidToken      = errors.New("token is invalid")
	ErrMissingAuthHeader = errors.New("authorization header is required")
	ErrInvalidAuthFormat = errors.New("authorization header must use the Bearer scheme")
	ErrEmptyToken        = errors.New("bearer token is empty")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrTokenExpired, "TOKEN_EXPIRED"},
	{ErrTokenMalformed, "TOKEN_MALFORMED"},
	{ErrInvalidSignature, "INVALID_SIGNATURE"},
	{ErrTokenNotYetValid, "TOKEN_NOT_YET_VALID"},
	{ErrMissingAuthHeader, "MISSING_AUTH_HEADER"},
	{ErrInvalidAuthFormat, "INVALID_AUTH_FORMAT"},
	{ErrEmptyToken, "EMPTY_TOKEN"},
	{ErrInvalidToken, "INVALID_TOKEN"},
}

// Describe returns the code and a client-safe message for an auth error.
// The message omits parser detail wrapped inside err.
func Describe(err error) (code, message string) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code, ec.err.Error()
		}
	}
	return "", ""
}

// Claims carried by an issued token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewIssuer returns an Issuer. A zero ttl means DefaultTTL; a nil clock uses
// wall time.
func NewIssuer(secret string, ttl time.Duration, clock clockwork.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for username and role.
func (i *Issuer) Issue(username, role string) (string, *Claims, error) {
	now := i.clock.Now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses and validates a token. Failures wrap exactly one of the
// package errors so callers can tell expiry from tampering.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrEmptyToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, fmt.Errorf("%w: %v", ErrTokenNotYetValid, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidAuthFormat
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// ExpiresIn renders a lifetime the way clients expect it ("1h", "30m", "45s").
func ExpiresIn(ttl time.Duration) string {
	switch {
	case ttl%time.Hour == 0:
		return fmt.Sprintf("%dh", ttl/time.Hour)
	case ttl%time.Minute == 0:
		return fmt.Sprintf("%dm", ttl/time.Minute)
	default:
		return fmt.Sprintf("%ds", ttl/time.Second)
	}
}
