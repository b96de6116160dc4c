package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/utils"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func runAuth(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c)+"|"+c.Get(CtxRole).(string))
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec
}

func TestJWTAuth(t *testing.T) {
	valid, err := utils.NewAccessToken(testSecret, "user-42", "", time.Hour)
	require.NoError(t, err)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{"valid token defaults role", "Bearer " + valid.Token, http.StatusOK, "user-42|user"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, ""},
		{"no expiry", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}), http.StatusUnauthorized, ""},
		{"other algorithm", "Bearer " + sign(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u1", "exp": future}), http.StatusUnauthorized, ""},
		{"numeric subject", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7, "exp": future}), http.StatusUnauthorized, ""},
		{"admin role kept", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "role": "admin", "exp": future}), http.StatusOK, "ops|admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runAuth(t, tt.header, JWTAuth(testSecret))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	user, err := utils.NewAccessToken(testSecret, "u1", RoleUser, time.Hour)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(testSecret, "ops", RoleAdmin, time.Hour)
	require.NoError(t, err)

	rec := runAuth(t, "Bearer "+user.Token, JWTAuth(testSecret), RequireRole(RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code, "user on admin route")
	rec = runAuth(t, "Bearer "+admin.Token, JWTAuth(testSecret), RequireRole(RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code, "admin on admin route")
	rec = runAuth(t, "Bearer "+admin.Token, JWTAuth(testSecret), RequireRole(RoleUser, RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code, "admin on user route")
}
