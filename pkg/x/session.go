package x

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Token is a logged-in web session
type Token struct {
	AuthToken string    `json:"auth_token"`
	CT0       string    `json:"ct0"`
	Username  string    `json:"username,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Valid reports whether both cookies are present
func (t *Token) Valid() bool {
	return t != nil && t.AuthToken != "" && t.CT0 != ""
}

// SessionStore persists one Token as JSON at a fixed path
type SessionStore struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionStore creates a store; ttl <= 0 never expires tokens
func NewSessionStore(path string, ttl time.Duration) *SessionStore {
	return &SessionStore{path: path, ttl: ttl, now: time.Now}
}

// Path returns the session file location
func (s *SessionStore) Path() string {
	return s.path
}

// Load returns the stored token, or nil when absent or expired
func (s *SessionStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session %s: %w", s.path, err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", s.path, err)
	}
	if !t.Valid() {
		return nil, nil
	}
	if s.ttl > 0 && !t.SavedAt.IsZero() && s.now().Sub(t.SavedAt) > s.ttl {
		return nil, nil
	}
	return &t, nil
}

// Save writes t with owner-only permissions, stamping SavedAt
func (s *SessionStore) Save(t *Token) error {
	if !t.Valid() {
		return errors.New("session token requires auth_token and ct0")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}

	t.SavedAt = s.now()
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session %s: %w", s.path, err)
	}
	return os.Rename(tmp, s.path)
}

// Delete removes the session file; a missing file is not an error
func (s *SessionStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
