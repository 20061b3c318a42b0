package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID int64, subscriptionExpiring *time.Time) string {
	t.Helper()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SubscriptionExpiring: subscriptionExpiring,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID int64
		wantExpiry *time.Time
	}{
		{
			name:       "valid token",
			header:     "Bearer " + signToken(t, testSecret, 42, nil),
			wantStatus: http.StatusOK,
			wantUserID: 42,
		},
		{
			name:       "valid token with subscription",
			header:     "Bearer " + signToken(t, testSecret, 7, &expiry),
			wantStatus: http.StatusOK,
			wantUserID: 7,
			wantExpiry: &expiry,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + signToken(t, "other-secret", 42, nil),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-numeric subject",
			header:     "Bearer " + signTokenWithSubject(t, "alice"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID int64
			var gotExpiry *time.Time
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID = GetUserID(r.Context())
				gotExpiry = GetSubscriptionExpiring(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/chatrooms", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Auth(testSecret)(next).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			require.Equal(t, tt.wantUserID, gotUserID)
			if tt.wantExpiry == nil {
				require.Nil(t, gotExpiry)
			} else {
				require.NotNil(t, gotExpiry)
				require.True(t, tt.wantExpiry.Equal(*gotExpiry))
			}
		})
	}
}

func signTokenWithSubject(t *testing.T, subject string) string {
	t.Helper()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}
