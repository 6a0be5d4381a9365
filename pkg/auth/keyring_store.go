package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "tadcatch"
	keyringPrefix  = "tadpoles_"
	keyringIndex   = "account_index"
)

// KeyringStore implements Store using the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed credential store, verifying the
// keychain is actually usable on this machine.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

// Save stores credentials in the system keychain.
func (k *KeyringStore) Save(creds *Credentials) error {
	if creds == nil || creds.Email == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+creds.Email, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.addToIndex(creds.Email)
}

// Load retrieves credentials from the system keychain.
func (k *KeyringStore) Load(email string) (*Credentials, error) {
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+email)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// Delete removes credentials from the system keychain.
func (k *KeyringStore) Delete(email string) error {
	if email == "" {
		return ErrInvalidCredentials
	}
	if err := keyring.Delete(keyringService, keyringPrefix+email); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.removeFromIndex(email)
}

// List returns the emails recorded in the keyring index entry. The keychain
// has no enumeration API, so the index is maintained alongside the entries.
func (k *KeyringStore) List() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	return strings.Split(data, "\n"), nil
}

func (k *KeyringStore) addToIndex(email string) error {
	emails, err := k.List()
	if err != nil {
		return err
	}
	for _, e := range emails {
		if e == email {
			return nil
		}
	}
	emails = append(emails, email)
	return keyring.Set(keyringService, keyringIndex, strings.Join(emails, "\n"))
}

func (k *KeyringStore) removeFromIndex(email string) error {
	emails, err := k.List()
	if err != nil {
		return err
	}
	kept := emails[:0]
	for _, e := range emails {
		if e != email {
			kept = append(kept, e)
		}
	}
	return keyring.Set(keyringService, keyringIndex, strings.Join(kept, "\n"))
}
