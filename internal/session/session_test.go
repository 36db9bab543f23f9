package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess := New("sid-1", store)

	if err := sess.Set(ctx, KeyPendingEmail, "a@x.com"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, _ := sess.Get(ctx, KeyPendingEmail); v != "a@x.com" {
		t.Errorf("get = %q", v)
	}

	if err := sess.Remove(ctx, KeyPendingEmail); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if v, _ := sess.Get(ctx, KeyPendingEmail); v != "" {
		t.Errorf("removed key still present: %q", v)
	}
}

func TestMemoryStoreClearIsWholesale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sess := New("sid-1", store)

	sess.Set(ctx, KeyUserID, "1")
	sess.Set(ctx, KeyUserRole, "User")
	if err := sess.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if v, _ := sess.Get(ctx, KeyUserID); v != "" {
		t.Error("user_id survived clear")
	}
	if v, _ := sess.Get(ctx, KeyUserRole); v != "" {
		t.Error("user_role survived clear")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := New("sid-a", store)
	b := New("sid-b", store)

	a.Set(ctx, KeyUserID, "1")
	if v, _ := b.Get(ctx, KeyUserID); v != "" {
		t.Error("session state leaked across session IDs")
	}
}

func TestManagerIssuesBrowserSessionCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(), "test_session", false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := m.Load(w, r)

	if sess.ID == "" {
		t.Fatal("no session ID assigned")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "test_session" || c.Value != sess.ID {
		t.Errorf("cookie %s=%s does not match session %s", c.Name, c.Value, sess.ID)
	}
	if c.MaxAge != 0 {
		t.Error("cookie must be scoped to the browser session")
	}
	if !c.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
}

func TestManagerReusesExistingCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(), "test_session", false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "test_session", Value: "existing-sid"})

	sess := m.Load(w, r)
	if sess.ID != "existing-sid" {
		t.Errorf("expected existing session, got %q", sess.ID)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no new cookie should be set for an existing session")
	}
}
