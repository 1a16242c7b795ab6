package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	"github.com/geocoder89/lifeplus/internal/auth"
	"github.com/geocoder89/lifeplus/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

const testUserID = "6f1c2d8e-5b7a-4c1e-9f3d-2a8b7c6d5e4f"

func newUUID() string {
	return uuid.NewString()
}

// every token is accepted and maps to testUserID
type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	return &auth.Claims{UserID: testUserID, Role: "user"}, nil
}

// setupRouter mounts one handler behind the auth middleware.
func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	am := middlewares.NewAuthMiddleware(fakeVerifier{})
	r.Handle(method, path, am.RequireAuth(), h)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer test")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
