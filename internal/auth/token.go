package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// TokenManager validates bearer tokens minted by the identity service. Issue
// exists for the CLI and tests.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes JWT payload. The user id travels in the registered "sub" claim.
type Claims struct {
	OrganizationID string      `json:"org"`
	Role           domain.Role `json:"role"`
	Name           string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the actor.
func (tm *TokenManager) Issue(actor domain.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		OrganizationID: actor.OrganizationID,
		Role:           actor.Role,
		Name:           actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || claims.OrganizationID == "" {
		return nil, errors.New("token missing subject or organization")
	}
	return claims, nil
}
