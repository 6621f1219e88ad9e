package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment
// variables, for CI jobs and containers with no writable keychain
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
func (e *EnvironmentStore) Retrieve(handle string) (*Account, error) {
	accessToken := os.Getenv("BARAAGDL_ACCESS_TOKEN")
	if accessToken == "" {
		return nil, ErrCredentialsNotFound
	}

	if handle == "" {
		handle = "default"
	}

	return &Account{
		Handle:       handle,
		ClientID:     os.Getenv("BARAAGDL_CLIENT_ID"),
		ClientSecret: os.Getenv("BARAAGDL_CLIENT_SECRET"),
		AccessToken:  accessToken,
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
func (e *EnvironmentStore) Delete(handle string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(handle string) bool {
	return os.Getenv("BARAAGDL_ACCESS_TOKEN") != ""
}
