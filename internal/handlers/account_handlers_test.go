package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alexedwards/argon2id"
	"github.com/pharmacare/accounts/internal/domain"
	"github.com/pharmacare/accounts/internal/handlers"
	"github.com/pharmacare/accounts/internal/service"
	"github.com/pharmacare/accounts/internal/session"
	"github.com/pharmacare/accounts/pkg/config"
	mw "github.com/pharmacare/accounts/pkg/middleware"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	nextID int64
	users  map[string]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[string]*domain.User)}
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	for _, u := range m.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Exists(_ context.Context, email string) (bool, error) {
	_, ok := m.users[strings.ToLower(email)]
	return ok, nil
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	key := strings.ToLower(user.Email)
	if _, ok := m.users[key]; ok {
		return nil, domain.ErrEmailTaken
	}
	copied := *user
	copied.ID = m.nextID
	copied.CreatedAt = time.Now()
	m.nextID++
	m.users[key] = &copied
	result := copied
	return &result, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *domain.User) error {
	copied := *user
	m.users[strings.ToLower(user.Email)] = &copied
	return nil
}

func (m *mockUserRepo) ValidateCredentials(ctx context.Context, email, password string) (bool, error) {
	u, _ := m.GetByEmail(ctx, email)
	if u == nil {
		return false, nil
	}
	return argon2id.ComparePasswordAndHash(password, u.PasswordHash)
}

type mockMailer struct {
	sent int
}

func (m *mockMailer) SendOtpEmail(_, _, _ string) error           { m.sent++; return nil }
func (m *mockMailer) SendPasswordResetEmail(_, _, _ string) error { m.sent++; return nil }

type mockRateLimit struct{}

func (mockRateLimit) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}
func (mockRateLimit) CleanupExpired(context.Context) (int64, error) { return 0, nil }

// ---------- Harness ----------

type testServer struct {
	srv  *httptest.Server
	repo *mockUserRepo

	cookies []*http.Cookie
	csrf    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Account: config.AccountConfig{
			OtpTTL:        10 * time.Minute,
			ResetTokenTTL: time.Hour,
			CSRFSecret:    "test-secret",
			CSRFTokenTTL:  time.Hour,
		},
		Session: config.SessionConfig{CookieName: "test_session"},
		App:     config.AppConfig{BaseURL: "http://localhost:5173"},
	}

	repo := newMockUserRepo()
	manager := session.NewManager(session.NewMemoryStore(), cfg.Session.CookieName, false)
	svc := service.NewAccountService(repo, &mockMailer{}, nil, cfg)
	h := handlers.New(svc, manager, mockRateLimit{}, cfg)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(h.WithSession)
		r.Use(mw.NoCache)
		r.Use(h.RequireCSRF)

		r.Get("/csrf", h.CsrfToken)
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/register", h.Register)
		r.Get("/verify-otp", h.VerifyOtpPage)
		r.Post("/verify-otp", h.VerifyOtp)
		r.Post("/resend-otp", h.ResendOtp)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Get("/reset-password", h.ResetPasswordLookup)
		r.Post("/reset-password", h.ResetPassword)
	})

	ts := &testServer{srv: httptest.NewServer(r), repo: repo}
	t.Cleanup(ts.srv.Close)

	// Bootstrap a session cookie and its anti-forgery token.
	resp := ts.get(t, "/csrf")
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode csrf response: %v", err)
	}
	ts.csrf = body["csrf_token"]
	if ts.csrf == "" {
		t.Fatal("no csrf token issued")
	}

	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		ts.cookies = append(ts.cookies, cookies...)
	}
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+path, nil)
	return ts.do(t, req)
}

func (ts *testServer) post(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", ts.csrf)
	return ts.do(t, req)
}

func readBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

func (ts *testServer) registerAndConfirm(t *testing.T, email string) {
	t.Helper()
	resp := ts.post(t, "/register", map[string]string{
		"first_name":       "Amina",
		"last_name":        "Haddad",
		"email":            email,
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	stored := ts.repo.users[strings.ToLower(email)]
	resp = ts.post(t, "/verify-otp", map[string]string{"otp": *stored.EmailOtp})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// ---------- Tests ----------

func TestCSRFRequiredOnMutatingRoutes(t *testing.T) {
	ts := newTestServer(t)

	data, _ := json.Marshal(map[string]string{"email": "a@x.com", "password": "Secret1!"})
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/login", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	// Session cookie but no token.
	resp := ts.do(t, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body["code"] != "INVALID_CSRF_TOKEN" {
		t.Errorf("unexpected code %v", body["code"])
	}
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	ts := newTestServer(t)
	other := newTestServer(t)

	// A token issued for another session must be rejected here.
	data, _ := json.Marshal(map[string]string{"email": "a@x.com", "password": "Secret1!"})
	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/login", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", other.csrf)
	resp := ts.do(t, req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign csrf token, got %d", resp.StatusCode)
	}
}

func TestRegistrationAndVerificationFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/register", map[string]string{
		"first_name":       "Amina",
		"last_name":        "Haddad",
		"email":            "a@x.com",
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The GET view reports the pending email for this session.
	resp = ts.get(t, "/verify-otp")
	body := readBody(t, resp)
	if body["pending_email"] != "a@x.com" {
		t.Errorf("pending_email = %v", body["pending_email"])
	}

	stored := ts.repo.users["a@x.com"]
	resp = ts.post(t, "/verify-otp", map[string]string{"otp": *stored.EmailOtp})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	if !ts.repo.users["a@x.com"].EmailConfirmed {
		t.Error("user not confirmed after verification")
	}

	// Re-submitting the same code: pending marker is gone.
	resp = ts.post(t, "/verify-otp", map[string]string{"otp": "123456"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 after verification completed, got %d", resp.StatusCode)
	}
}

func TestLoginResponsesAreIndistinguishable(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndConfirm(t, "a@x.com")

	unknown := ts.post(t, "/login", map[string]string{"email": "nobody@x.com", "password": "Secret1!"})
	wrong := ts.post(t, "/login", map[string]string{"email": "a@x.com", "password": "WrongPass1!"})

	if unknown.StatusCode != http.StatusUnauthorized || wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.StatusCode, wrong.StatusCode)
	}

	unknownBody := readBody(t, unknown)
	wrongBody := readBody(t, wrong)
	if unknownBody["error"] != wrongBody["error"] || unknownBody["code"] != wrongBody["code"] {
		t.Errorf("login failure responses differ: %v vs %v", unknownBody, wrongBody)
	}
}

func TestLoginUnverifiedUser(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/register", map[string]string{
		"first_name":       "Amina",
		"last_name":        "Haddad",
		"email":            "a@x.com",
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	})
	resp.Body.Close()

	resp = ts.post(t, "/login", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unverified user, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body["code"] != "EMAIL_NOT_VERIFIED" {
		t.Errorf("unexpected code %v", body["code"])
	}
}

func TestLoginSuccessReportsLandingRoute(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndConfirm(t, "a@x.com")

	resp := ts.post(t, "/login", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body["redirect_to"] != "/" {
		t.Errorf("redirect_to = %v", body["redirect_to"])
	}

	// The GET login view now reports the visitor as logged in.
	resp = ts.get(t, "/login")
	if body := readBody(t, resp); body["logged_in"] != true {
		t.Errorf("logged_in = %v", body["logged_in"])
	}
}

func TestForgotPasswordResponseIsGeneric(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndConfirm(t, "a@x.com")

	known := ts.post(t, "/forgot-password", map[string]string{"email": "a@x.com"})
	unknown := ts.post(t, "/forgot-password", map[string]string{"email": "nobody@x.com"})

	if known.StatusCode != http.StatusOK || unknown.StatusCode != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", known.StatusCode, unknown.StatusCode)
	}

	knownBody := readBody(t, known)
	unknownBody := readBody(t, unknown)
	if knownBody["message"] != unknownBody["message"] {
		t.Errorf("forgot-password responses differ: %v vs %v", knownBody, unknownBody)
	}

	if ts.repo.users["a@x.com"].PasswordResetToken == nil {
		t.Error("reset token not issued for the known email")
	}
}

func TestResetPasswordEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndConfirm(t, "a@x.com")

	resp := ts.post(t, "/forgot-password", map[string]string{"email": "a@x.com"})
	resp.Body.Close()
	token := *ts.repo.users["a@x.com"].PasswordResetToken

	resp = ts.get(t, "/reset-password?token="+token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.get(t, "/reset-password?token=bogus")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus token lookup returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.post(t, "/reset-password", map[string]string{
		"token":            token,
		"new_password":     "NewSecret2!",
		"confirm_password": "NewSecret2!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset commit returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Token consumed; the lookup now fails.
	resp = ts.get(t, "/reset-password?token="+token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 after commit, got %d", resp.StatusCode)
	}
}

func TestWeakPasswordListsViolations(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/register", map[string]string{
		"first_name":       "Amina",
		"last_name":        "Haddad",
		"email":            "a@x.com",
		"password":         "weakpass",
		"confirm_password": "weakpass",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	if body["code"] != "WEAK_PASSWORD" {
		t.Fatalf("unexpected code %v", body["code"])
	}
	violations, ok := body["violations"].([]interface{})
	if !ok || len(violations) != 2 {
		t.Errorf("expected 2 violations, got %v", body["violations"])
	}
}

func TestNoCacheHeadersOnAccountRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/login")
	defer resp.Body.Close()
	if got := resp.Header.Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := resp.Header.Get("Pragma"); got != "no-cache" {
		t.Errorf("Pragma = %q", got)
	}
}
