// Package auth implements the authentication gate from spec §4.7: token
// issuance/verification and the bcrypt credential check for service
// accounts.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kandev/raworc/internal/common/errors"
)

// Issuer is the fixed iss claim every token carries.
const Issuer = "raworc-rbac"

// SubjectType discriminates the two kinds of authenticated principal on the
// wire. It intentionally does not reuse rbac.PrincipalType's stored values
// ("User"/"ServiceAccount"): spec §6 states the token claim as
// sub_type ∈ {"ServiceAccount","Subject"}, distinct from the persisted
// principal_type column's "User" literal for the same concept.
type SubjectType string

const (
	SubjectTypeServiceAccount SubjectType = "ServiceAccount"
	SubjectTypeSubject        SubjectType = "Subject"
)

// Claims is the JWT payload described in spec §6/§4.7.
type Claims struct {
	SubType   SubjectType `json:"sub_type"`
	Workspace string      `json:"workspace,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with a single shared HS256 secret.
type TokenManager struct {
	secret        []byte
	tokenDuration time.Duration
}

// NewTokenManager builds a TokenManager from the configured JWT secret and
// default token lifetime (24h per spec §4.7).
func NewTokenManager(secret string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), tokenDuration: tokenDuration}
}

// Encode issues a token for sub, of kind subType, optionally scoped to a
// workspace (informational only per spec §9, never enforced by the gate).
func (m *TokenManager) Encode(sub string, subType SubjectType, workspace string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.tokenDuration)

	claims := Claims{
		SubType:   subType,
		Workspace: workspace,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperrors.JWTError(fmt.Errorf("sign token: %w", err))
	}
	return signed, expiresAt, nil
}

// Decode verifies a token's signature, issuer, and expiration and returns
// its claims. Algorithm confusion is prevented by rejecting any signing
// method other than HMAC before the secret is used to verify.
func (m *TokenManager) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}
