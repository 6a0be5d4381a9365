// Package auth stores the portal login credentials. The system keychain is
// the primary backend with environment variables as fallback, so a password
// never needs to live in a config file.
package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialsNotFound indicates no stored credentials exist.
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrInvalidCredentials indicates the credentials are malformed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credentials is one portal account login.
type Credentials struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the interface for storing and retrieving portal credentials.
type Store interface {
	// Save stores credentials for the account.
	Save(creds *Credentials) error
	// Load retrieves credentials for a specific email.
	Load(email string) (*Credentials, error)
	// Delete removes credentials for a specific email.
	Delete(email string) error
	// List returns the emails of all stored accounts.
	List() ([]string, error)
}

// Manager resolves credentials through a chain of stores.
type Manager struct {
	stores []Store
}

// NewManager creates a credential manager with the available backends.
// The keyring is tried first; environment variables are the last resort.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Save stores credentials in the first store that accepts them.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil || creds.Email == "" || creds.Password == "" {
		return ErrInvalidCredentials
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(creds); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("all credential stores failed: %w", lastErr)
}

// Load retrieves credentials for the given email, trying each store in order.
func (m *Manager) Load(email string) (*Credentials, error) {
	for _, store := range m.stores {
		creds, err := store.Load(email)
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrCredentialsNotFound) {
			return nil, err
		}
	}
	return nil, ErrCredentialsNotFound
}

// LoadAny returns the first stored account found in any backend.
func (m *Manager) LoadAny() (*Credentials, error) {
	for _, store := range m.stores {
		emails, err := store.List()
		if err != nil || len(emails) == 0 {
			continue
		}
		creds, err := store.Load(emails[0])
		if err == nil {
			return creds, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes credentials for the given email from every backend.
func (m *Manager) Delete(email string) error {
	var deleted bool
	for _, store := range m.stores {
		if err := store.Delete(email); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return ErrCredentialsNotFound
	}
	return nil
}

// List returns all stored account emails across backends, de-duplicated.
func (m *Manager) List() ([]string, error) {
	seen := make(map[string]bool)
	var emails []string
	for _, store := range m.stores {
		list, err := store.List()
		if err != nil {
			continue
		}
		for _, email := range list {
			if !seen[email] {
				seen[email] = true
				emails = append(emails, email)
			}
		}
	}
	return emails, nil
}
