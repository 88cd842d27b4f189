// Package auth resolves a connection's authenticated identity from the
// token issued by the external auth system. This core only verifies and
// decodes; accounts and credentials live elsewhere.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-core/domain"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider validates HS256 tokens signed with a shared secret.
type Provider struct {
	secret        []byte
	tokenDuration time.Duration
}

func NewProvider(secret []byte, tokenDuration time.Duration) *Provider {
	return &Provider{secret: secret, tokenDuration: tokenDuration}
}

// Identify parses and validates the signature and expiration of a token
// string and returns the user it authenticates.
func (p *Provider) Identify(tokenString string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return domain.UserID(claims.UserID), nil
	}
	return "", jwt.ErrSignatureInvalid
}

// GenerateToken creates a signed JWT for a specific user. Used by the
// terminal client and tests; production tokens come from the auth service.
func (p *Provider) GenerateToken(user domain.UserID) (string, error) {
	claims := &CustomClaims{
		UserID: string(user),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-core",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
