package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/lifeplus/internal/actorctx"
	"github.com/geocoder89/lifeplus/internal/auth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func TestRequireAuth(t *testing.T) {
	ok := fakeVerifier{claims: &auth.Claims{UserID: "u1", Role: "user"}}
	bad := fakeVerifier{err: errors.New("expired")}

	tests := []struct {
		name       string
		header     string
		verifier   fakeVerifier
		wantStatus int
	}{
		{"no header", "", ok, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", ok, http.StatusUnauthorized},
		{"empty token", "Bearer ", ok, http.StatusUnauthorized},
		{"rejected token", "Bearer abc", bad, http.StatusUnauthorized},
		{"valid", "Bearer abc", ok, http.StatusOK},
		{"lowercase scheme", "bearer abc", ok, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewAuthMiddleware(tc.verifier)
			r := gin.New()
			r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
				id, _ := UserIDFromContext(c)
				actor, _ := actorctx.UserIDFrom(c.Request.Context())
				if id != "u1" || actor != "u1" {
					t.Errorf("identity not propagated: gin=%q ctx=%q", id, actor)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	for _, tc := range []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"user", http.StatusForbidden},
	} {
		m := NewAuthMiddleware(fakeVerifier{claims: &auth.Claims{UserID: "u1", Role: tc.role}})
		r := gin.New()
		r.GET("/users", m.RequireAuth(), m.RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer t")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Fatalf("role %s: got status %d, want %d", tc.role, w.Code, tc.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/auth/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := hit(); w.Code != http.StatusOK {
			t.Fatalf("hit %d: got %d", i, w.Code)
		}
	}

	w := hit()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("got Retry-After %q", w.Header().Get("Retry-After"))
	}

	now = now.Add(61 * time.Second)
	if w := hit(); w.Code != http.StatusOK {
		t.Fatalf("new window: got %d", w.Code)
	}
}

func TestRequireContentType(t *testing.T) {
	r := gin.New()
	r.POST("/exams", RequireContentType("multipart/form-data", "application/json"), func(c *gin.Context) { c.Status(http.StatusOK) })

	for ct, want := range map[string]int{
		"multipart/form-data; boundary=x": http.StatusOK,
		"application/json; charset=utf-8": http.StatusOK,
		"text/plain":                      http.StatusUnsupportedMediaType,
		"":                                http.StatusUnsupportedMediaType,
	} {
		req := httptest.NewRequest(http.MethodPost, "/exams", strings.NewReader("{}"))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("content-type %q: got %d, want %d", ct, w.Code, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("got request id %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id")
	}
}
