// Package auth tracks the authenticated principal for the current
// process and drives the login, refresh, and logout endpoints. The
// session is an explicit object with a defined lifecycle, not package
// state: it is established by Login (or rehydrated by Me) and torn
// down by Logout or an unrecoverable refresh failure.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eduforge/eduforge-go/internal/api"
)

// Endpoint paths on the auth service.
const (
	LoginPath   = "/api/auth/login"
	RefreshPath = "/api/auth/refresh"
	LogoutPath  = "/api/auth/logout"
	MePath      = "/api/auth/me"
)

// Principal is the authenticated-user snapshot returned by the auth
// service.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session holds the process-wide authentication state.
type Session struct {
	client *api.Client
	logger *slog.Logger

	mu        sync.Mutex
	principal *Principal
}

// NewSession creates an auth session bound to the given client and
// registers itself as the client's refresh and teardown handler.
func NewSession(client *api.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{client: client, logger: logger}
	client.SetRefresh(RefreshPath, s.refresh)
	client.SetOnAuthExpired(s.clear)
	return s
}

// Login authenticates with email and password. On success the server
// sets session cookies and the principal snapshot is recorded.
func (s *Session) Login(ctx context.Context, email, password string) (*Principal, error) {
	body := map[string]string{"email": email, "password": password}
	var p Principal
	if err := s.client.DoJSON(ctx, "POST", LoginPath, body, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.principal = &p
	s.mu.Unlock()

	s.logger.Info("logged in", "user", p.Email, "role", p.Role)
	return &p, nil
}

// Logout ends the session on the server, then clears cookies
// client-side as a defensive fallback and drops the principal.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.DoJSON(ctx, "POST", LogoutPath, nil, nil)
	if resetErr := s.client.ResetCookies(); resetErr != nil && err == nil {
		err = resetErr
	}
	s.clear()
	return err
}

// Me fetches the current principal from the server and rehydrates the
// local snapshot. Useful on process start when cookies may still be
// valid.
func (s *Session) Me(ctx context.Context) (*Principal, error) {
	var p Principal
	if err := s.client.DoJSON(ctx, "GET", MePath, nil, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.principal = &p
	s.mu.Unlock()
	return &p, nil
}

// Principal returns the current principal snapshot, or nil when not
// authenticated.
func (s *Session) Principal() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// Authenticated reports whether a principal is present.
func (s *Session) Authenticated() bool {
	return s.Principal() != nil
}

// refresh calls the refresh endpoint. The server reissues cookies into
// the client jar on success. Invoked by the api client on 401; never
// called concurrently more than once thanks to the client's refresh
// deduplication.
func (s *Session) refresh(ctx context.Context) error {
	return s.client.DoJSON(ctx, "POST", RefreshPath, nil, nil)
}

// Clear tears down the local session state. Exposed for callers that
// cascade teardown to dependent state.
func (s *Session) Clear() { s.clear() }

// clear tears down the local session state after logout or a failed
// refresh.
func (s *Session) clear() {
	s.mu.Lock()
	had := s.principal != nil
	s.principal = nil
	s.mu.Unlock()
	if had {
		s.logger.Info("auth session cleared")
	}
}
