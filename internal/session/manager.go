package session

import (
	"net/http"

	"github.com/google/uuid"
)

// Manager issues session cookies and loads the matching Session handle.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
}

func NewManager(store Store, cookieName string, secure bool) *Manager {
	return &Manager{store: store, cookieName: cookieName, secure: secure}
}

// Load returns the visitor's session, creating one (and setting the cookie)
// when none exists yet. The cookie carries no Max-Age so its lifetime is
// scoped to the browser session.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return New(cookie.Value, m.store)
	}

	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return New(sid, m.store)
}
