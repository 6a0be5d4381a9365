package auth

import "os"

// EnvironmentStore implements Store over TADCATCH_EMAIL / TADCATCH_PASSWORD.
// It is read-only and exists for CI and backward compatibility with shell
// profiles; Save and Delete are not supported.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Save(creds *Credentials) error {
	return ErrInvalidCredentials
}

func (e *EnvironmentStore) Load(email string) (*Credentials, error) {
	envEmail := os.Getenv("TADCATCH_EMAIL")
	password := os.Getenv("TADCATCH_PASSWORD")
	if envEmail == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && email != envEmail {
		return nil, ErrCredentialsNotFound
	}
	return &Credentials{Email: envEmail, Password: password}, nil
}

func (e *EnvironmentStore) Delete(email string) error {
	return ErrCredentialsNotFound
}

func (e *EnvironmentStore) List() ([]string, error) {
	if email := os.Getenv("TADCATCH_EMAIL"); email != "" && os.Getenv("TADCATCH_PASSWORD") != "" {
		return []string{email}, nil
	}
	return nil, nil
}
