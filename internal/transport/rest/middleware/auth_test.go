package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainduel/internal/model"
	"brainduel/internal/service"
)

func signTestToken(t *testing.T, secret, uid string) string {
	t.Helper()
	claims := &model.GuestClaims{
		UID:         uid,
		DisplayName: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRequireUser(t *testing.T) {
	authSvc := service.NewAuthService(nil, "test-secret")
	mw := NewAuthMiddleware(authSvc)

	var seenUID string
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("bearer header", func(t *testing.T) {
		seenUID = ""
		req := httptest.NewRequest("GET", "/v1/matches/open", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "test-secret", "u_abc123"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u_abc123", seenUID)
	})

	t.Run("token query param", func(t *testing.T) {
		seenUID = ""
		req := httptest.NewRequest("GET", "/v1/matches/open?token="+signTestToken(t, "test-secret", "u_def456"), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u_def456", seenUID)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/matches/open", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/matches/open", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "other-secret", "u_abc123"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
