package auth

import (
	"sync"
)

// memoryStore is an in-memory CredentialStore for tests
type memoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	storeErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]Account)}
}

func (m *memoryStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *memoryStore) Retrieve(username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *memoryStore) List() ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Account
	for _, a := range m.accounts {
		acc := a
		out = append(out, &acc)
	}
	return out, nil
}

func (m *memoryStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *memoryStore) Exists(username string) bool {
	_, err := m.Retrieve(username)
	return err == nil
}

func (m *memoryStore) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
