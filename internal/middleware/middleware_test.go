package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "test-secret"

func signToken(t *testing.T, role, typ string, ttl time.Duration) string {
	t.Helper()
	claims := JWTClaims{
		OperatorID: "6c1f5e3e-6f7a-4b5e-9d0c-2f4a1b2c3d4e",
		Username:   "ana",
		Role:       role,
		TokenType:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func protected(roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/p", JWTAuth(testSecret), RequireRole(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, ActorID(c).String())
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, "admin", "access", -time.Minute), http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + signToken(t, "admin", "refresh", time.Hour), http.StatusUnauthorized},
		{"wrong role", "Bearer " + signToken(t, "viewer", "access", time.Hour), http.StatusForbidden},
		{"ok", "Bearer " + signToken(t, "operator", "access", time.Hour), http.StatusOK},
	}
	r := protected("admin", "operator")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestActorIDFromClaims(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "admin", "access", time.Hour))
	protected("admin").ServeHTTP(w, req)
	assert.Equal(t, "6c1f5e3e-6f7a-4b5e-9d0c-2f4a1b2c3d4e", w.Body.String())
}

func TestVerifySignature(t *testing.T) {
	r := gin.New()
	r.POST("/hook", VerifySignature(testSecret), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})
	body := []byte(`{"type":"shipped"}`)

	send := func(sig string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
		req.Header.Set(SignatureHeader, sig)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send("deadbeef").Code)

	w := send("sha256=" + Sign(testSecret, body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(body), w.Body.String(), "body is restored for the handler")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestIPLimiter_FixedWindow(t *testing.T) {
	l := &ipLimiter{name: "t", limit: 2, period: time.Minute, windows: map[string]*window{}}
	now := time.Now()

	ok, _ := l.allow("1.1.1.1", now)
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1", now)
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1", now)
	assert.False(t, ok)
	ok, _ = l.allow("2.2.2.2", now)
	assert.True(t, ok, "limits are per IP")

	ok, _ = l.allow("1.1.1.1", now.Add(2*time.Minute))
	assert.True(t, ok, "new window")

	assert.Equal(t, 1, l.purge(now.Add(3*time.Minute)))
}
