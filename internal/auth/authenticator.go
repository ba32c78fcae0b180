package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cra-notify/internal/models"
)

// TokenSource records where a handshake token was found.
type TokenSource string

const (
	SourceNone   TokenSource = ""
	SourceQuery  TokenSource = "auth"
	SourceHeader TokenSource = "header"
	SourceCookie TokenSource = "cookie"
)

// Identity is what a verified connection carries for its lifetime.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

// UserStore is the liveness check behind the token.
type UserStore interface {
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
}

// ExtractToken looks at the auth field, then the Authorization header, then the cookie.
func ExtractToken(r *http.Request, cookieName string) (string, TokenSource) {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return strings.TrimPrefix(token, "Bearer "), SourceQuery
	}

	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), SourceHeader
		}
	}

	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
			return cookie.Value, SourceCookie
		}
	}

	return "", SourceNone
}

type Authenticator struct {
	tokens     *TokenManager
	users      UserStore
	cookieName string
}

func NewAuthenticator(tokens *TokenManager, users UserStore, cookieName string) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, cookieName: cookieName}
}

// Authenticate resolves a handshake request to an Identity or a terminal error.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	tokenString, _ := ExtractToken(r, a.cookieName)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims, err := a.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindActiveByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrUserInactive
		}
		return nil, fmt.Errorf("failed to load user %s: %w", claims.UserID, err)
	}

	return &Identity{UserID: user.ID, Role: claims.Role, Name: user.DisplayName()}, nil
}
