// Package auth issues bearer tokens and resolves the calling user from them.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

const revokedCapacity = 10_000

type Claims struct {
	UserName string `json:"unique_name"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Tokens signs and verifies HS256 JWTs and remembers logged-out token ids
// until they would have expired anyway.
type Tokens struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	revoked  *expirable.LRU[string, struct{}]
}

func NewTokens(key, issuer, audience string, ttl time.Duration) *Tokens {
	return &Tokens{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
		revoked:  expirable.NewLRU[string, struct{}](revokedCapacity, nil, ttl),
	}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

func (t *Tokens) Issue(userID int64, userName string) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.Unauthorized, err, "token expired")
		}
		return nil, apperr.Wrap(apperr.Unauthorized, err, "invalid token")
	}
	if _, ok := t.revoked.Get(claims.ID); ok {
		return nil, apperr.New(apperr.Unauthorized, "token revoked")
	}
	return claims, nil
}

// Revoke blocks the token id for the rest of the token lifetime. When the
// cache is full the oldest revocation is dropped first.
func (t *Tokens) Revoke(c *Claims) {
	if c == nil || c.ID == "" {
		return
	}
	t.revoked.Add(c.ID, struct{}{})
}
