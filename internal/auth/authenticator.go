package auth

import (
	"context"
	"strings"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
)

// UserLookup confirms a token subject still exists.
type UserLookup interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
}

type Principal struct {
	UserID   int64
	UserName string
	Claims   *Claims
}

type Authenticator struct {
	tokens *Tokens
	users  UserLookup
}

func NewAuthenticator(tokens *Tokens, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

func (a *Authenticator) Tokens() *Tokens { return a.tokens }

// FromHeader resolves an "Authorization: Bearer <jwt>" value.
func (a *Authenticator) FromHeader(ctx context.Context, header string) (*Principal, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, apperr.New(apperr.Unauthorized, "missing bearer token")
	}
	return a.FromToken(ctx, strings.TrimSpace(raw))
}

func (a *Authenticator) FromToken(ctx context.Context, raw string) (*Principal, error) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil || id <= 0 {
		return nil, apperr.New(apperr.Unauthorized, "invalid token subject")
	}
	if _, err := a.users.Get(ctx, id); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.Unauthorized, "user no longer exists")
		}
		return nil, err
	}
	return &Principal{UserID: id, UserName: claims.UserName, Claims: claims}, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
