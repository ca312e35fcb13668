// Package auth mints and parses the signed session tokens.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

func MintTokens(userID int64, username, role, secret string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	at, err := sign(userID, username, role, KindAccess, secret, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	rt, err := sign(userID, username, role, KindRefresh, secret, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: at, RefreshToken: rt}, nil
}

func sign(userID int64, username, role, kind, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return t.SignedString([]byte(secret))
}

// ParseClaims verifies tokenStr and checks it is of the wanted kind
func ParseClaims(tokenStr, secret, kind string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Kind != kind {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}
