package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/lifeplus/api"
	"github.com/geocoder89/lifeplus/internal/accounts"
	"github.com/geocoder89/lifeplus/internal/auth"
	"github.com/geocoder89/lifeplus/internal/credentials"
	"github.com/geocoder89/lifeplus/internal/events"
	"github.com/geocoder89/lifeplus/internal/exams"
	apphttp "github.com/geocoder89/lifeplus/internal/http"
	"github.com/geocoder89/lifeplus/internal/ledger"
	"github.com/geocoder89/lifeplus/internal/medicines"
	"github.com/geocoder89/lifeplus/internal/notifications"
	"github.com/geocoder89/lifeplus/internal/recovery"
	"github.com/geocoder89/lifeplus/internal/repo/memory"
	"github.com/geocoder89/lifeplus/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (o *outbox) Send(_ context.Context, msg notifications.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no mail sent")
	code := codePattern.FindString(o.msgs[len(o.msgs)-1].Text)
	require.NotEmpty(t, code, "no code in mail body")
	return code
}

type app struct {
	router *gin.Engine
	store  *memory.Store
	mail   *outbox
	jwt    *auth.Manager
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	mail := &outbox{}

	jwtManager, err := auth.NewManager("integration-secret", time.Hour)
	require.NoError(t, err)

	cipher, err := security.NewFieldCipher("integration-encryption-key")
	require.NoError(t, err)

	creds := credentials.NewManager(store.Users(), recovery.NewMemoryStore(), mail, jwtManager, credentials.WithLogger(log))
	accountsSvc := accounts.NewService(store.Users(), creds, log)

	router := apphttp.NewRouter(apphttp.Deps{
		Log:       log,
		Tokens:    jwtManager,
		APIDoc:    api.OpenAPI,
		Registrar: accountsSvc,
		Recovery:  creds,
		Accounts:  accountsSvc,
		Medicines: medicines.NewService(store.Medicines()),
		Ledger:    ledger.New(store.Medicines(), events.NopPublisher{}, nil, log),
		Exams:     exams.NewService(store.Exams(), cipher),
		// generous so a full flow never trips the limiter
		AuthRateLimit: 1000,
	})

	return &app{router: router, store: store, mail: mail, jwt: jwtManager}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) doMultipart(t *testing.T, method, path, token string, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files[]"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write(data)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body=%s", w.Body.String())
	return out
}

// signUp registers and logs in, returning a bearer token.
func (a *app) signUp(t *testing.T, name, email, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password, "birthDate": "1990-05-17",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return a.login(t, email, password)
}

func (a *app) login(t *testing.T, email, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](t, w).Token
}
