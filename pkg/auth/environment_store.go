package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername = "BOORUDL_USERNAME"
	EnvAPIKey   = "BOORUDL_API_KEY"
)

// EnvironmentStore implements CredentialStore using environment variables.
// The same credentials are returned for every site.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(site string) (*Account, error) {
	username := os.Getenv(EnvUsername)
	apiKey := os.Getenv(EnvAPIKey)

	if username == "" || apiKey == "" {
		return nil, ErrCredentialsNotFound
	}

	if site == "" {
		site = "environment"
	}

	return &Account{
		Site:         site,
		Username:     username,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(site string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(site string) bool {
	return os.Getenv(EnvUsername) != "" && os.Getenv(EnvAPIKey) != ""
}
