package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qrclass/internal/apperr"
)

// Identity is the authenticated subject attached to every request. It is
// re-derived from the bearer token on each call; nothing caller-supplied is
// trusted for authorization.
type Identity struct {
	ID   string
	Role Role
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue issues signed HS256 access and refresh tokens for a subject/role.
func Issue(subject string, role Role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	mk := func(exp time.Time) (string, error) {
		claims := Claims{
			Role: string(role),
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(exp),
				IssuedAt:  jwt.NewNumericDate(now),
			},
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	}

	accessToken, err := mk(accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := mk(refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token signature, expiry and issuer and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}

// Authenticate resolves a bearer token into an Identity. Missing, malformed,
// expired, or unknown-role tokens all fail closed with ErrUnauthenticated.
func Authenticate(tokenStr, key, issuer string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, fmt.Errorf("%w: missing credential", apperr.ErrUnauthenticated)
	}
	claims, err := Parse(tokenStr, key, issuer)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token without subject", apperr.ErrUnauthenticated)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	return Identity{ID: claims.Subject, Role: role}, nil
}
