package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-service/internal/token"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testKey = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine protects GET /protected with Auth; the handler echoes the userID.
func newEngine() *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.Auth([]byte(testKey)), func(c *gin.Context) {
		c.String(http.StatusOK, "%s", c.GetString("userID"))
	})
	return r
}

func sign(t *testing.T, key string, claims jwt.MapClaims, ttl time.Duration) string {
	t.Helper()
	s, err := token.NewHMACIssuer([]byte(key)).Sign(claims, ttl)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return s
}

func get(t *testing.T, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	newEngine().ServeHTTP(w, req)
	return w
}

func TestAuth_Rejects(t *testing.T) {
	tests := []struct {
		name          string
		authorization func(t *testing.T) string
	}{
		{"missing header", func(*testing.T) string { return "" }},
		{"basic scheme", func(*testing.T) string { return "Basic dXNlcjpwYXNz" }},
		{"empty bearer", func(*testing.T) string { return "Bearer " }},
		{"garbage token", func(*testing.T) string { return "Bearer not.a.jwt" }},
		{"expired", func(t *testing.T) string {
			return "Bearer " + sign(t, testKey, jwt.MapClaims{"sub": "user-1"}, -time.Minute)
		}},
		{"wrong key", func(t *testing.T) string {
			return "Bearer " + sign(t, "some-other-key", jwt.MapClaims{"sub": "user-1"}, time.Hour)
		}},
		{"missing sub", func(t *testing.T) string {
			return "Bearer " + sign(t, testKey, jwt.MapClaims{"email": "a@x.com"}, time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, tt.authorization(t))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuth_ValidToken_SetsUserID(t *testing.T) {
	w := get(t, "Bearer "+sign(t, testKey, jwt.MapClaims{"sub": "user-42", "email": "a@x.com"}, time.Hour))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "user-42" {
		t.Errorf("userID = %q, want user-42", w.Body.String())
	}
}
