// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey ContextKey = "user_id"
	// SubscriptionExpiringKey is the context key for the subscription
	// expiry carried in the token.
	SubscriptionExpiringKey ContextKey = "subscription_expiring"
)

// Claims represents JWT claims. The subject is the numeric user id; the
// subscription expiry rides along so the chat pipeline never needs a user
// store to pick a quota tier.
type Claims struct {
	jwt.RegisteredClaims
	SubscriptionExpiring *time.Time `json:"subscription_expiring,omitempty"`
}

// Auth creates JWT authentication middleware.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 {
				http.Error(w, `{"error":"invalid token subject"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			if claims.SubscriptionExpiring != nil {
				ctx = context.WithValue(ctx, SubscriptionExpiringKey, claims.SubscriptionExpiring)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets the authenticated user id from context, or 0.
func GetUserID(ctx context.Context) int64 {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(int64)
	}
	return 0
}

// GetSubscriptionExpiring gets the subscription expiry from context, or
// nil for a user with no subscription.
func GetSubscriptionExpiring(ctx context.Context) *time.Time {
	if v := ctx.Value(SubscriptionExpiringKey); v != nil {
		return v.(*time.Time)
	}
	return nil
}
