package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bchfaucet/internal/auth"
	"bchfaucet/internal/config"
	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/handler"
	"bchfaucet/internal/logger"
	"bchfaucet/internal/model"
	"bchfaucet/internal/service"
)

// memoryUsers is an in-memory UserRepository.
type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]model.User{}}
}

func (r *memoryUsers) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperrors.ErrUserAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (r *memoryUsers) find(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *memoryUsers) List(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUsers) DeleteByEmailLike(context.Context, string) (int64, error) {
	return 0, nil
}

type stubFaucet struct {
	last service.PayoutRequest
}

func (f *stubFaucet) Balance(context.Context) (int64, error) { return 150000000, nil }

func (f *stubFaucet) Payout(_ context.Context, req service.PayoutRequest) (*service.PayoutResult, error) {
	f.last = req
	return &service.PayoutResult{Success: true, TxID: "abc", Message: "Coins sent."}, nil
}

func (f *stubFaucet) SweepIPs(context.Context) (int64, error) { return 4, nil }

func (f *stubFaucet) RunSweeper(context.Context) {}

type stubContact struct{}

func (stubContact) Send(_ context.Context, obj map[string]interface{}) error {
	if _, ok := obj["email"].(string); !ok {
		return apperrors.NewValidationError("Property 'email' must be a string!")
	}
	return nil
}

type testServer struct {
	e       *echo.Echo
	users   *memoryUsers
	userSvc service.UserService
	faucet  *stubFaucet
}

func newTestServer(t *testing.T, rateLimit int, trustedProxies ...string) *testServer {
	t.Helper()
	logDir := t.TempDir()
	cfg := &config.Config{
		Env:    config.EnvTest,
		Server: config.ServerConfig{RateLimitPerMinute: rateLimit, TrustedProxies: trustedProxies},
		Log:    config.LogConfig{Dir: logDir, App: "faucet", Password: "letmein"},
	}
	line := `{"timestamp":"2026-03-10T10:00:00Z","message":"hello"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(logDir, logger.FileName("faucet", config.EnvTest, time.Now())), []byte(line), 0o644))

	users := newMemoryUsers()
	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	userSvc := service.NewUserService(users, nil)
	faucet := &stubFaucet{}

	e := echo.New()
	Register(e, cfg, zap.NewNop(), auth.NewMiddleware(jwtSvc, userSvc, zap.NewNop()), Handlers{
		Auth:    handler.NewAuthHandler(service.NewAuthService(users, jwtSvc)),
		Users:   handler.NewUserHandler(userSvc),
		Coins:   handler.NewCoinHandler(faucet),
		Contact: handler.NewContactHandler(stubContact{}),
		Logs:    handler.NewLogHandler(service.NewLogService(cfg.Log, cfg.Env)),
	})
	return &testServer{e: e, users: users, userSvc: userSvc, faucet: faucet}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User  map[string]interface{} `json:"user"`
	Token string                 `json:"token"`
}

func (s *testServer) signup(t *testing.T, email string) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/users", "", map[string]interface{}{
		"user": map[string]string{"email": email, "password": "pass"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSignupReturnsUserAndToken(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/users", "", map[string]interface{}{
		"user": map[string]string{"email": "test@test.com", "password": "pass"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	var out authBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "test@test.com", out.User["email"])
	assert.Equal(t, "user", out.User["type"])
	assert.NotEmpty(t, out.User["_id"])
	assert.NotEmpty(t, out.Token)
}

func TestSignupValidationAndDuplicate(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/users", "", map[string]interface{}{"user": map[string]string{"password": "pass"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"Property 'email' must be a string!","code":"VALIDATION_ERROR"}`, rec.Body.String())

	s.signup(t, "dup@test.com")
	rec = s.do(t, http.MethodPost, "/users", "", map[string]interface{}{"user": map[string]string{"email": "dup@test.com", "password": "x"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0)
	s.signup(t, "login@test.com")

	rec := s.do(t, http.MethodPost, "/auth", "", map[string]string{"email": "login@test.com", "password": "pass"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth", "", map[string]string{"email": "login@test.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth", "", map[string]string{"email": "login@test.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIgnoresSharedUsernames(t *testing.T) {
	s := newTestServer(t, 0)
	for _, email := range []string{"first@test.com", "second@test.com"} {
		rec := s.do(t, http.MethodPost, "/users", "", map[string]interface{}{
			"user": map[string]string{"email": email, "password": "pass-" + email, "username": "system"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	for _, email := range []string{"first@test.com", "second@test.com"} {
		rec := s.do(t, http.MethodPost, "/auth", "", map[string]string{"email": email, "password": "pass-" + email})
		require.Equal(t, http.StatusOK, rec.Code)
		var out authBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, email, out.User["email"])
	}

	rec := s.do(t, http.MethodPost, "/auth", "", map[string]string{"username": "system", "password": "pass-first@test.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	s := newTestServer(t, 0)
	me := s.signup(t, "me@test.com")
	id := me.User["_id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"signup", http.MethodPost, "/users", ""},
		{"login", http.MethodPost, "/auth", ""},
		{"update", http.MethodPut, "/users/" + id, me.Token},
		{"contact", http.MethodPost, "/contact/email", ""},
		{"logapi", http.MethodPost, "/logapi", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"user":`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.token != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.JSONEq(t, `{"error":"invalid request body","code":"VALIDATION_ERROR"}`, rec.Body.String())
		})
	}
}

func TestUserRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)
	me := s.signup(t, "me@test.com")

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users", "garbage", nil).Code)

	rec := s.do(t, http.MethodGet, "/users", me.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []map[string]interface{} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Users, 1)

	rec = s.do(t, http.MethodGet, "/users/"+me.User["_id"].(string), me.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+uuid.NewString(), me.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserByNonOwnerIsUnauthorized(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.signup(t, "alice@test.com")
	bob := s.signup(t, "bob@test.com")

	rec := s.do(t, http.MethodPut, "/users/"+alice.User["_id"].(string), bob.Token,
		map[string]interface{}{"user": map[string]string{"name": "hijacked"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateUserTypeRequiresAdmin(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.signup(t, "alice@test.com")
	aliceID := alice.User["_id"].(string)

	rec := s.do(t, http.MethodPut, "/users/"+aliceID, alice.Token,
		map[string]interface{}{"user": map[string]string{"type": "admin"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/"+aliceID, alice.Token,
		map[string]interface{}{"user": map[string]string{"name": "Alice"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alice"`)

	admin := s.signup(t, "admin@test.com")
	require.NoError(t, s.userSvc.Promote(context.Background(), uuid.MustParse(admin.User["_id"].(string))))

	rec = s.do(t, http.MethodPut, "/users/"+aliceID, admin.Token,
		map[string]interface{}{"user": map[string]string{"type": "admin"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"admin"`)
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.signup(t, "alice@test.com")
	bob := s.signup(t, "bob@test.com")
	aliceID := alice.User["_id"].(string)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodDelete, "/users/"+aliceID, bob.Token, nil).Code)

	rec := s.do(t, http.MethodDelete, "/users/"+aliceID, alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// the token now names a missing user
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users", alice.Token, nil).Code)
}

func TestCoins(t *testing.T) {
	s := newTestServer(t, 0, "192.0.2.0/24")

	rec := s.do(t, http.MethodGet, "/coins", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":150000000,"balanceBCH":"1.50000000"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/coins/bchtest:qqexample", nil)
	req.Header.Set(echo.HeaderOrigin, "https://developer.bitcoin.com")
	req.Header.Set(echo.HeaderXForwardedFor, "10.1.2.3")
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"txid":"abc","message":"Coins sent."}`, rec.Body.String())
	assert.Equal(t, service.PayoutRequest{
		Address: "bchtest:qqexample",
		IP:      "10.1.2.3",
		Origin:  "https://developer.bitcoin.com",
	}, s.faucet.last)
}

func TestCoinsRateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(t, http.MethodGet, "/coins/bchtest:qqexample", "", nil).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/coins", "", nil).Code)
}

func TestCoinsIgnoreForwardedHeadersFromUntrustedPeers(t *testing.T) {
	s := newTestServer(t, 2)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/coins/bchtest:qqexample", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("198.51.101.%d", i))
		req.Header.Set("True-Client-IP", fmt.Sprintf("198.51.102.%d", i))
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "203.0.113.7", s.faucet.last.IP)
}

func TestCoinsTrustedProxyUsesLastUntrustedHop(t *testing.T) {
	s := newTestServer(t, 0, "203.0.113.0/24", "bogus")

	req := httptest.NewRequest(http.MethodGet, "/coins/bchtest:qqexample", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	// the client forged the first entry, the proxy appended the real peer
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.9, 192.168.1.20")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.168.1.20", s.faucet.last.IP)
}

func TestAdminSweepRequiresAdmin(t *testing.T) {
	s := newTestServer(t, 0)
	user := s.signup(t, "user@test.com")
	admin := s.signup(t, "admin@test.com")
	require.NoError(t, s.userSvc.Promote(context.Background(), uuid.MustParse(admin.User["_id"].(string))))

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/admin/ips/sweep", "", nil).Code)

	rec := s.do(t, http.MethodPost, "/admin/ips/sweep", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_ADMIN")

	rec = s.do(t, http.MethodPost, "/admin/ips/sweep", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deleted":4}`, rec.Body.String())
}

func TestContact(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/contact/email", "", map[string]interface{}{"obj": map[string]string{"email": "a@b.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/contact/email", "", map[string]interface{}{"obj": map[string]string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLogAPI(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/logapi", "", map[string]string{"password": "nope"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/logapi", "", map[string]string{"password": "letmein"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[{"timestamp":"2026-03-10T10:00:00Z","message":"hello"}]}`, rec.Body.String())
}

func TestHealthzAndUnknownRoute(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"Not Found"`)
}
