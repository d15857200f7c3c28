package app

import "encoding/json"

const (
	authTokenKey = "auth_token"
	authUserKey  = "auth_user"
)

// Token returns the current bearer token, empty when unauthenticated.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// InitAuth rehydrates the auth session from storage. A missing token or an
// unreadable user record clears the in-memory session but leaves storage
// untouched; only Logout erases it.
func (s *Store) InitAuth() {
	token, tokenErr := s.storage.Get(authTokenKey)
	rawUser, userErr := s.storage.Get(authUserKey)

	if tokenErr == nil && userErr == nil && len(token) > 0 {
		var user AuthUser
		if err := json.Unmarshal(rawUser, &user); err == nil {
			s.commit(func(st *State) {
				st.Token = string(token)
				st.User = &user
				st.IsAuthenticated = true
			})
			return
		}
	}

	s.commit(func(st *State) {
		st.Token = ""
		st.User = nil
		st.IsAuthenticated = false
	})
}

// SetAuth establishes an authenticated session and mirrors it to storage.
func (s *Store) SetAuth(token string, user AuthUser) {
	if err := s.storage.Set(authTokenKey, []byte(token)); err != nil {
		s.logger.Warn("failed to persist auth token", map[string]interface{}{"error": err.Error()})
	}
	if raw, err := json.Marshal(user); err == nil {
		if err := s.storage.Set(authUserKey, raw); err != nil {
			s.logger.Warn("failed to persist auth user", map[string]interface{}{"error": err.Error()})
		}
	}
	s.commit(func(st *State) {
		st.Token = token
		st.User = &user
		st.IsAuthenticated = true
		st.ShowLoginModal = false
	})
}

func (s *Store) Logout() {
	_ = s.storage.Delete(authTokenKey)
	_ = s.storage.Delete(authUserKey)
	s.commit(func(st *State) {
		st.Token = ""
		st.User = nil
		st.IsAuthenticated = false
	})
}

func (s *Store) OpenLoginModal() {
	s.commit(func(st *State) { st.ShowLoginModal = true })
}

func (s *Store) CloseLoginModal() {
	s.commit(func(st *State) { st.ShowLoginModal = false })
}

// RequireAuth runs callback only when authenticated; otherwise it raises the
// login prompt and reports false.
func (s *Store) RequireAuth(callback func()) bool {
	if !s.Snapshot().IsAuthenticated {
		s.OpenLoginModal()
		return false
	}
	if callback != nil {
		callback()
	}
	return true
}

// handleUnauthorized is the out-of-band 401 signal. It only raises the login
// prompt: the token is not cleared here, so "session expired" and "never
// logged in" both land on the login screen instead of a blank state.
func (s *Store) handleUnauthorized() {
	s.logger.Warn("received 401, login required", nil)
	s.OpenLoginModal()
}
