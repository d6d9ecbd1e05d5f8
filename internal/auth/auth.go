// Package auth adapts the external auth subsystem: bearer token validation,
// the identity request context and display profile resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ContextKey string

const (
	UserIDKey  ContextKey = "userId"
	ProfileKey ContextKey = "profile"
)

var ErrNoToken = errors.New("internal/auth: bearer token missing")

func MakeJWT(userID uuid.UUID, tokenSecret, issuer string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})

	return token.SignedString([]byte(tokenSecret))
}

// ValidateJWT returns the identity in the token's subject. An empty issuer
// accepts any issuer.
func ValidateJWT(tokenString, tokenSecret, issuer string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(tokenSecret), nil },
		opts...,
	)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to parse token: %w", err)
	}

	if !token.Valid {
		return uuid.UUID{}, errors.New("internal/auth: token is invalid")
	}

	if claims.Subject == "" {
		return uuid.UUID{}, errors.New("internal/auth: subject claim is missing")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: subject is not a user id: %w", err)
	}
	return userID, nil
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for browser websocket clients.
func BearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errors.New("internal/auth: malformed authorization header")
		}
		return strings.TrimSpace(token), nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}

func GetUserFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok {
		return uuid.UUID{}, errors.New("internal/auth: user id not found in context")
	}
	if userID == uuid.Nil {
		return uuid.UUID{}, errors.New("internal/auth: user id is empty")
	}
	return userID, nil
}

func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
