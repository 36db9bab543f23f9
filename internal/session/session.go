// Package session holds the transient per-visitor state used by the
// account flows. State is addressed by an opaque session ID carried in a
// browser-session cookie; the values themselves live server-side.
package session

import "context"

// Session keys used by the account flows.
const (
	KeyUserID       = "user_id"
	KeyUserName     = "user_name"
	KeyUserRole     = "user_role"
	KeyPendingEmail = "pending_email"
)

// Store is the backing key-value store for session state.
// Get returns the empty string for absent keys.
type Store interface {
	Set(ctx context.Context, sid, key, value string) error
	Get(ctx context.Context, sid, key string) (string, error)
	Remove(ctx context.Context, sid, key string) error
	Clear(ctx context.Context, sid string) error
}

// Session binds a session ID to its store so callers can pass a single
// explicit handle through the service layer.
type Session struct {
	ID    string
	store Store
}

func New(id string, store Store) *Session {
	return &Session{ID: id, store: store}
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.ID, key, value)
}

func (s *Session) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.ID, key)
}

func (s *Session) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.ID, key)
}

func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.ID)
}
