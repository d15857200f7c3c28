package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitAuthRestoresValidSession(t *testing.T) {
	s := newTestStore("", nil)
	if err := s.storage.Set(authTokenKey, []byte("tok123")); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if err := s.storage.Set(authUserKey, []byte(`{"id":"u1","username":"alice","phone":"123"}`)); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	s.InitAuth()

	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.Token != "tok123" {
		t.Fatalf("session not restored: auth=%v token=%q", snap.IsAuthenticated, snap.Token)
	}
	if snap.User == nil || snap.User.Username != "alice" {
		t.Fatalf("user not restored: %+v", snap.User)
	}
}

func TestInitAuthCorruptUserClearsMemoryOnly(t *testing.T) {
	s := newTestStore("", nil)
	_ = s.storage.Set(authTokenKey, []byte("tok123"))
	_ = s.storage.Set(authUserKey, []byte("not json"))

	s.InitAuth()

	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.Token != "" || snap.User != nil {
		t.Fatalf("corrupt user should leave session unauthenticated: %+v", snap)
	}
	// Storage is untouched; only Logout erases it.
	if _, err := s.storage.Get(authTokenKey); err != nil {
		t.Fatalf("stored token removed: %v", err)
	}
}

func TestInitAuthMissingTokenIsUnauthenticated(t *testing.T) {
	s := newTestStore("", nil)
	s.InitAuth()
	if s.Snapshot().IsAuthenticated {
		t.Fatalf("expected unauthenticated without stored token")
	}
}

func TestSetAuthAndLogoutRoundTrip(t *testing.T) {
	s := newTestStore("", nil)

	s.SetAuth("tok456", AuthUser{ID: "u1", Username: "bob"})

	if _, err := s.storage.Get(authTokenKey); err != nil {
		t.Fatalf("token not persisted: %v", err)
	}
	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.ShowLoginModal {
		t.Fatalf("SetAuth state: %+v", snap)
	}

	s.Logout()

	if _, err := s.storage.Get(authTokenKey); err != ErrNotFound {
		t.Fatalf("token survived logout: err=%v", err)
	}
	if _, err := s.storage.Get(authUserKey); err != ErrNotFound {
		t.Fatalf("user survived logout: err=%v", err)
	}
	snap = s.Snapshot()
	if snap.IsAuthenticated || snap.Token != "" || snap.User != nil {
		t.Fatalf("Logout state: %+v", snap)
	}
}

func TestUnauthorizedResponseOpensLoginModal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := newTestStore(server.URL, nil)
	s.SetAuth("expired", AuthUser{ID: "u1"})

	s.LoadWorkspaces(context.Background())

	snap := s.Snapshot()
	if !snap.ShowLoginModal {
		t.Fatalf("401 did not raise login modal")
	}
	// The token stays so the user can retry after re-login elsewhere.
	if snap.Token != "expired" {
		t.Fatalf("401 cleared the token: %q", snap.Token)
	}
}

func TestRequireAuth(t *testing.T) {
	s := newTestStore("", nil)

	ran := false
	if s.RequireAuth(func() { ran = true }) {
		t.Fatalf("expected RequireAuth to fail when unauthenticated")
	}
	if ran {
		t.Fatalf("callback ran while unauthenticated")
	}
	if !s.Snapshot().ShowLoginModal {
		t.Fatalf("login modal not raised")
	}

	s.SetAuth("tok", AuthUser{ID: "u1"})
	if !s.RequireAuth(func() { ran = true }) || !ran {
		t.Fatalf("callback not run when authenticated")
	}
}
