// Package auth issues and verifies dashboard access tokens, checks Telegram
// Login Widget signatures and admin API keys.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// DefaultTokenTTL - токен живёт 30 дней.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims are the JWT claims of a dashboard token.
// sub carries the Telegram id as a string.
type Claims struct {
	StudentID int64 `json:"student_id"`
	jwt.RegisteredClaims
}

// TelegramID parses the subject.
func (c *Claims) TelegramID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. ttl <= 0 means DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth: secret key is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for the student.
func (t *TokenIssuer) Issue(telegramID, studentID int64) (string, error) {
	now := t.now()
	claims := &Claims{
		StudentID: studentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(telegramID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns its claims.
// Any failure (bad signature, expiry, missing student_id) is ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, shared.WrapError("auth", "Verify", shared.ErrUnauthorized, "invalid or expired token", err)
	}
	if claims.StudentID <= 0 {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN API KEYS
// ══════════════════════════════════════════════════════════════════════════════

// APIKeys validates X-API-Key values in constant time.
type APIKeys struct {
	keys [][]byte
}

// NewAPIKeys creates a validator. Empty keys are ignored.
func NewAPIKeys(keys []string) *APIKeys {
	out := &APIKeys{}
	for _, k := range keys {
		if k != "" {
			out.keys = append(out.keys, []byte(k))
		}
	}
	return out
}

// Verify returns ErrInvalidAPIKey unless key matches a configured key.
func (a *APIKeys) Verify(key string) error {
	if key == "" {
		return shared.ErrInvalidAPIKey
	}
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
			return nil
		}
	}
	return shared.ErrInvalidAPIKey
}
