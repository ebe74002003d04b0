// Package auth validates the connection-identity tokens carried by the
// websocket auth frame. Token issuance belongs to the session service;
// only a dev/test helper lives here.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role of a connection identity.
const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// ConnectionClaims is the identity a connection binds to on auth:
// staff user+shop, or customer+shop+code.
type ConnectionClaims struct {
	Role         string `json:"role"`
	UserID       string `json:"user_id,omitempty"`
	ShopID       string `json:"shop_id"`
	CustomerCode string `json:"customer_code,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates connection tokens with HS256.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret []byte, duration time.Duration) *TokenManager {
	return &TokenManager{secret: secret, duration: duration}
}

// Generate creates a signed token for the given identity.
func (m *TokenManager) Generate(claims ConnectionClaims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    "support-chat",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(m.secret)
}

// Validate parses and checks the signature and expiration of a token string.
func (m *TokenManager) Validate(tokenString string) (*ConnectionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConnectionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*ConnectionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
