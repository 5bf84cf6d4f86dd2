package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	"laststock/internal/pkg/cache"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/middleware"
	"laststock/internal/pkg/token"
)

func okHandler(t *testing.T, wantActor string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantActor, claims.Actor)
		w.WriteHeader(http.StatusNoContent)
	})
}

func category(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body domain.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Category
}

// TestAuthMiddleware testa token ausente, inválido e válido.
func TestAuthMiddleware(t *testing.T) {
	tokens := token.NewService("segredo", time.Hour)
	log := logger.NewNop()
	h := middleware.NewAuthMiddleware(tokens, log)(okHandler(t, "Ana"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stock", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", category(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/v1/stock", nil)
	req.Header.Set("Authorization", "Bearer nao-e-um-jwt")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := tokens.GenerateToken("u-1", "Ana", string(domain.RoleStaff))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/stock", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// TestPermissionMiddleware testa o bloqueio por papel.
func TestPermissionMiddleware(t *testing.T) {
	log := logger.NewNop()
	h := middleware.PermissionMiddleware(log, domain.RoleAdmin)(okHandler(t, "Chefe"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/purchase-orders/1/confirm", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff := httptest.NewRequest(http.MethodPost, "/v1/purchase-orders/1/confirm", nil)
	staff = staff.WithContext(middleware.WithUserClaims(staff.Context(), middleware.UserClaims{UserID: "u-2", Actor: "Ana", Role: domain.RoleStaff}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, staff)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", category(t, rec))

	admin := httptest.NewRequest(http.MethodPost, "/v1/purchase-orders/1/confirm", nil)
	admin = admin.WithContext(middleware.WithUserClaims(admin.Context(), middleware.UserClaims{UserID: "u-1", Actor: "Chefe", Role: domain.RoleAdmin}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// TestRateLimiter testa o bloqueio após o limite da janela.
func TestRateLimiter(t *testing.T) {
	h := middleware.RateLimiter(cache.NewMemoryClient(), 2, time.Minute, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/ping", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
