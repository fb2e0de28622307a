package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const tokenCookieKey = "token"

var errNoToken = errors.New("no token provided")

type contextKey string

const userIdKey contextKey = "user-id"

func UserId(ctx context.Context) (int, bool) {
	userId, ok := ctx.Value(userIdKey).(int)

	return userId, ok
}

func WithUserId(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

// tokenFromRequest reads the session token from a bearer Authorization header,
// falling back to the token cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", errNoToken
		}
		return strings.TrimSpace(token), nil
	}

	cookie, err := r.Cookie(tokenCookieKey)
	if err != nil || cookie.Value == "" {
		return "", errNoToken
	}

	return cookie.Value, nil
}
