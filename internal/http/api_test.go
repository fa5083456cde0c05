package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noteful-auth/internal/health"
	"noteful-auth/internal/password"
	"noteful-auth/internal/repository/memory"
	"noteful-auth/internal/service"
	"noteful-auth/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	users  *memory.UserRepository
	logs   *test.Hook
	now    time.Time
}

func newTestServer(t *testing.T, checkers ...health.Checker) *testServer {
	t.Helper()

	ts := &testServer{
		users: memory.NewUserRepository(),
		now:   time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	hasher, err := password.NewBcryptHasher(password.Config{Cost: 4})
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.Config{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
		Now:    func() time.Time { return ts.now },
	})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ts.logs = hook

	ts.router = gin.New()
	NewHandler(service.NewUserService(ts.users, hasher, issuer), health.NewService(checkers...), logger).
		RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) login(t *testing.T, username, pass string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+pass+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok, ok := decode(t, rec)["authToken"].(string)
	require.True(t, ok)
	return tok
}

func TestRegister_Created(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/users",
		`{"username":"alice","password":"password-1","fullname":"    First Last     "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "First Last", body["fullname"])
	assert.NotEmpty(t, body["createdAt"])
	assert.NotEmpty(t, body["updatedAt"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/users/"+id, rec.Header().Get("Location"))
}

func TestRegister_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty body", ``, http.StatusForbidden, "username required!"},
		{"missing username", `{"password":"password-1"}`, http.StatusForbidden, "username required!"},
		{"missing password", `{"username":"alice"}`, http.StatusForbidden, "password required!"},
		{"numeric username", `{"username":42,"password":"password-1"}`, http.StatusNotAcceptable, "username not valid! Needs to be a string please"},
		{"null password", `{"username":"alice","password":null}`, http.StatusNotAcceptable, "password not valid! Needs to be a string please"},
		{"padded username", `{"username":" alice","password":"password-1"}`, http.StatusExpectationFailed, "username must not have leading or trailing spaces!"},
		{"padded password", `{"username":"alice","password":"password-1 "}`, http.StatusExpectationFailed, "password must not have leading or trailing spaces!"},
		{"empty username", `{"username":"","password":"password-1"}`, http.StatusLengthRequired, "Username must be at least ONE character, c'mon!"},
		{"password of 7", `{"username":"alice","password":"1234567"}`, http.StatusLengthRequired, "Passwords must be at least eight characters"},
		{"three multi-byte characters", `{"username":"alice","password":"日本語"}`, http.StatusLengthRequired, "Passwords must be at least eight characters"},
		{"password of 73", `{"username":"alice","password":"` + strings.Repeat("x", 73) + `"}`, http.StatusLengthRequired, "Passwords must be no more than seventy-two characters"},
		{"numeric fullname", `{"username":"alice","password":"password-1","fullname":7}`, http.StatusNotAcceptable, "fullname not valid! Needs to be a string please"},
		{"malformed json", `{"username":`, http.StatusBadRequest, "Malformed request body"},
		{"array body", `["alice"]`, http.StatusBadRequest, "Malformed request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/api/users", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, map[string]any{"message": tc.message}, decode(t, rec))
			assert.Equal(t, 0, ts.users.Len())
		})
	}
}

func TestRegister_PasswordBounds(t *testing.T) {
	for _, n := range []int{8, 72} {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/users",
			`{"username":"alice","password":"`+strings.Repeat("p", n)+`"}`)
		assert.Equal(t, http.StatusCreated, rec.Code, "length %d", n)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	body := `{"username":"alice","password":"password-1"}`

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/users", body).Code)

	rec := ts.do(t, http.MethodPost, "/api/users", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"message": "The username already exists"}, decode(t, rec))
	assert.Equal(t, 1, ts.users.Len())
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/users", `{"username":"alice","password":"password-1"}`).Code)

	raw := ts.login(t, "alice", "password-1")
	assert.Equal(t, 2, strings.Count(raw, "."))

	wrongPassword := ts.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"password-2"}`)
	unknownUser := ts.do(t, http.MethodPost, "/api/login", `{"username":"bob","password":"password-1"}`)
	nonString := ts.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":12345678}`)
	missing := ts.do(t, http.MethodPost, "/api/login", `{}`)

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser, nonString, missing} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `{"message":"Unauthorized"}`, rec.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/users", `{"username":"alice","password":"password-1"}`).Code)
	raw := ts.login(t, "alice", "password-1")

	ts.now = ts.now.Add(time.Minute)
	rec := ts.do(t, http.MethodPost, "/api/refresh", "", "Authorization", "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["authToken"])

	rec = ts.do(t, http.MethodPost, "/api/refresh", "", "Authorization", "bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh_Unauthorized(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/users", `{"username":"alice","password":"password-1"}`).Code)
	raw := ts.login(t, "alice", "password-1")

	cases := map[string][]string{
		"no header":    nil,
		"wrong scheme": {"Authorization", "Basic " + raw},
		"garbage":      {"Authorization", "Bearer nonsense"},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/refresh", "", headers...)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `{"message":"Unauthorized"}`, rec.Body.String())
		})
	}

	t.Run("expired", func(t *testing.T) {
		ts.now = ts.now.Add(2 * time.Hour)
		rec := ts.do(t, http.MethodPost, "/api/refresh", "", "Authorization", "Bearer "+raw)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `{"message":"Unauthorized"}`, rec.Body.String())
	})
}

func TestGetUser(t *testing.T) {
	ts := newTestServer(t)
	created := ts.do(t, http.MethodPost, "/api/users", `{"username":"alice","password":"password-1"}`)
	require.Equal(t, http.StatusCreated, created.Code)
	location := created.Header().Get("Location")
	raw := ts.login(t, "alice", "password-1")

	rec := ts.do(t, http.MethodGet, location, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, location, "", "Authorization", "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, decode(t, created), decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/users/not-a-user", "", "Authorization", "Bearer "+raw)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"message":"Not Found"}`, rec.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, health.NewPingChecker("store", memory.NewUserRepository()))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/ready", "").Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReady_Unavailable(t *testing.T) {
	ts := newTestServer(t, health.NewPingChecker("store", downPinger{}))

	rec := ts.do(t, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var warned bool
	for _, entry := range ts.logs.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "readiness check failed" {
			warned = true
			assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "store: connection refused")
		}
	}
	assert.True(t, warned)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodOptions, "/api/users", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogging(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/users", `{"username":"alice","password":"password-1"}`,
		requestIDHeader, "req-42")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	entry := ts.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request handled", entry.Message)
	assert.Equal(t, "req-42", entry.Data["request_id"])
	assert.Equal(t, http.StatusCreated, entry.Data["status"])
	assert.NotContains(t, entry.Data, "password")
}

func TestErrorBoundaryHidesInternalErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	router := gin.New()
	router.Use(errorBoundary(logger))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: relation users does not exist"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `{"message":"Internal Server Error"}`, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
