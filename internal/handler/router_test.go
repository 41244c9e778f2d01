package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/internal/cache"
	"github.com/kube-rca/authd/internal/client"
	mailmock "github.com/kube-rca/authd/internal/client/mock"
	"github.com/kube-rca/authd/internal/config"
	"github.com/kube-rca/authd/internal/db"
	"github.com/kube-rca/authd/internal/metrics"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	mailer *mailmock.MailerMock
	sent   []client.Email
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithBlocklist(t, nil)
}

func newTestServerWithBlocklist(t *testing.T, blocklist service.Blocklist) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := db.NewMemory()
	ts := &testServer{mailer: &mailmock.MailerMock{}}
	ts.mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { ts.sent = append(ts.sent, args.Get(1).(client.Email)) }).
		Return("email-id", nil)

	svc, err := service.NewAuthService(service.Dependencies{Store: store, Mailer: ts.mailer, Blocklist: blocklist}, config.AuthConfig{
		AccessSecret:            "access-secret",
		RefreshSecret:           "refresh-secret",
		AccessTTL:               "15m",
		SessionTTL:              "720h",
		SessionRefreshThreshold: "24h",
		BcryptCost:              "4",
	}, "https://app.example.com")
	require.NoError(t, err)

	ts.router = NewRouter(RouterConfig{
		Auth:           svc,
		Store:          store,
		Metrics:        metrics.New(),
		AllowedOrigins: []string{"https://app.example.com"},
	})
	return ts
}

func (ts *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "handler-test/1.0")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func cookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

const registerBody = `{"email":"alice@example.com","password":"hunter22","confirmPassword":"hunter22"}`

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res model.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.False(t, res.User.Verified)
	assert.NotContains(t, w.Body.String(), "password")

	access := cookie(t, w, accessCookieName)
	assert.Equal(t, "/", access.Path)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, 900, access.MaxAge)

	refresh := cookie(t, w, refreshCookieName)
	assert.Equal(t, "/auth/refresh", refresh.Path)
	assert.Equal(t, 30*24*3600, refresh.MaxAge)

	w = ts.do(http.MethodPost, "/auth/register", registerBody)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already in use", errorBody(t, w))
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{"email":"alice@example.com","password":"hunter22","confirmPassword":"hunter23"}`,
		`{"email":"not-an-email","password":"hunter22","confirmPassword":"hunter22"}`,
		`{"email":"alice@example.com","password":"short","confirmPassword":"short"}`,
		`{`,
	} {
		w := ts.do(http.MethodPost, "/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/auth/register", registerBody).Code)

	w := ts.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong-pw"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorBody(t, w))

	w = ts.do(http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"wrong-pw"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorBody(t, w))

	w = ts.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	access := cookie(t, w, accessCookieName)
	refresh := cookie(t, w, refreshCookieName)

	w = ts.do(http.MethodGet, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing refresh token", errorBody(t, w))

	w = ts.do(http.MethodGet, "/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, cookie(t, w, accessCookieName).Value)
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, refreshCookieName, c.Name, "no rotation for a fresh session")
	}

	w = ts.do(http.MethodGet, "/user", "", access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)

	w = ts.do(http.MethodGet, "/auth/logout", "", access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, cookie(t, w, accessCookieName).MaxAge)
	assert.Equal(t, -1, cookie(t, w, refreshCookieName).MaxAge)

	w = ts.do(http.MethodGet, "/auth/refresh", "", refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, w.Code, "logout without a token still succeeds")
}

func TestVerifyEmailRoute(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, w.Code)
	access := cookie(t, w, accessCookieName)

	require.Len(t, ts.sent, 1)
	var code string
	for _, f := range strings.Fields(ts.sent[0].Text) {
		if strings.HasPrefix(f, "https://app.example.com/email/verify/") {
			code = strings.TrimPrefix(f, "https://app.example.com/email/verify/")
		}
	}
	require.NotEmpty(t, code)

	w = ts.do(http.MethodGet, "/auth/email/verify/"+code, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/auth/email/verify/"+code, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/user", "", access)
	assert.Contains(t, w.Body.String(), `"verified":true`)

	w = ts.do(http.MethodGet, "/auth/email/verify/"+strings.Repeat("x", 30), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordRoutes(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/auth/register", registerBody).Code)

	w := ts.do(http.MethodPost, "/auth/password/forgot", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodPost, "/auth/password/forgot", `{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/auth/password/forgot", `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = ts.do(http.MethodPost, "/auth/password/reset", `{"password":"new-password","verificationCode":"nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid or expired verification code", errorBody(t, w))
}

func TestSessionRoutes(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, w.Code)
	access := cookie(t, w, accessCookieName)

	w = ts.do(http.MethodGet, "/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/sessions", "", access)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []model.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsCurrent)
	assert.Equal(t, "handler-test/1.0", sessions[0].UserAgent)

	w = ts.do(http.MethodDelete, "/sessions/unknown", "", access)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found", errorBody(t, w))

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "bearer header is accepted")

	w = ts.do(http.MethodDelete, "/sessions/"+sessions[0].ID, "", access)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthOpenAPIMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","store":"memory"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = ts.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/auth/register")

	w = ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authd_http_request_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *mapCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func loginCookie(t *testing.T, ts *testServer) *http.Cookie {
	t.Helper()
	w := ts.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	return cookie(t, w, accessCookieName)
}

func TestRevokedSessionsStopAuthenticating(t *testing.T) {
	ts := newTestServerWithBlocklist(t, cache.NewSessionBlocklist(&mapCache{data: map[string]string{}}))
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/auth/register", registerBody).Code)

	laptop := loginCookie(t, ts)
	phone := loginCookie(t, ts)

	w := ts.do(http.MethodGet, "/sessions", "", phone)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []model.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))

	var phoneID string
	for _, s := range sessions {
		if s.IsCurrent {
			phoneID = s.ID
		}
	}
	require.NotEmpty(t, phoneID)

	w = ts.do(http.MethodDelete, "/sessions/"+phoneID, "", laptop)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/user", "", phone)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid access token", errorBody(t, w))

	w = ts.do(http.MethodGet, "/user", "", laptop)
	require.Equal(t, http.StatusOK, w.Code, "other sessions are unaffected")

	w = ts.do(http.MethodGet, "/auth/logout", "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/user", "", laptop)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordResetRevokesAccessTokens(t *testing.T) {
	ts := newTestServerWithBlocklist(t, cache.NewSessionBlocklist(&mapCache{data: map[string]string{}}))
	w := ts.do(http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, w.Code)
	access := cookie(t, w, accessCookieName)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/auth/password/forgot", `{"email":"alice@example.com"}`).Code)
	var code string
	for _, f := range strings.Fields(ts.sent[len(ts.sent)-1].Text) {
		if u, err := url.Parse(f); err == nil && u.Path == "/password/reset" {
			code = u.Query().Get("code")
		}
	}
	require.NotEmpty(t, code)

	w = ts.do(http.MethodPost, "/auth/password/reset", `{"password":"new-password","verificationCode":"`+code+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/user", "", access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_LongPassword(t *testing.T) {
	ts := newTestServer(t)
	pw := strings.Repeat("p", 100)

	w := ts.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"`+pw+`","confirmPassword":"`+pw+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"`+pw+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
