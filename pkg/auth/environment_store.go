package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads one account from XSCRAPER_* variables; the bare
// USER_NAME, E-MAIL and PASS_WORD names are also accepted
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func lookupEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (e *EnvironmentStore) read() *Account {
	username := lookupEnv("XSCRAPER_USERNAME", "USER_NAME")
	password := lookupEnv("XSCRAPER_PASSWORD", "PASS_WORD")
	if username == "" || password == "" {
		return nil
	}
	return &Account{
		Username:     username,
		Email:        lookupEnv("XSCRAPER_EMAIL", "E-MAIL"),
		Password:     password,
		TOTPSecret:   lookupEnv("XSCRAPER_TOTP_SECRET"),
		LastModified: time.Now(),
	}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account; an empty username matches it
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := e.read()
	if account == nil || (username != "" && username != account.Username) {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns the environment account, if any
func (e *EnvironmentStore) List() ([]*Account, error) {
	if account := e.read(); account != nil {
		return []*Account{account}, nil
	}
	return []*Account{}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists reports whether the environment holds credentials for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
