package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"pro-chat/internal/identity"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	NameKey     contextKey = "name"
)

// TokenValidator is what we need from the directory service. The interface
// keeps 'middleware' decoupled from 'directory'.
type TokenValidator interface {
	ValidateToken(tokenString string) (identity.Participant, string, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		// Check Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// Fallback: query param (the websocket client cannot set headers)
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		who, name, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, who)
		ctx = context.WithValue(ctx, NameKey, name)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the authenticated participant from a request context.
func IdentityFrom(ctx context.Context) (identity.Participant, bool) {
	who, ok := ctx.Value(IdentityKey).(identity.Participant)
	return who, ok
}

// NameFrom extracts the authenticated display name from a request context.
func NameFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(NameKey).(string)
	return name, ok
}
