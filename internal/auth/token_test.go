package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukudarovv/instachecker-sub000/internal/auth"
)

const testSecret = "test-secret-key-of-adequate-length"

func TestGenerateAndValidateToken(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)

	token, err := tm.GenerateToken("owner-1", "owner@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID, "token carries a unique JTI")
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)
	other := auth.NewTokenManager("a-completely-different-secret-key", time.Hour)

	token, err := tm.GenerateToken("owner-1", "owner@example.com")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, -time.Minute)

	token, err := tm.GenerateToken("owner-1", "owner@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)
	token, err := tm.GenerateToken("owner-1", "owner@example.com")
	require.NoError(t, err)

	handler := auth.Middleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.OwnerFromContext(r)
		require.NotNil(t, claims)
		assert.Equal(t, "owner-1", claims.OwnerID)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"invalid token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/targets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
