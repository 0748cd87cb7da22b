package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername = "INSTAGRAM_USERNAME"
	EnvPassword = "INSTAGRAM_PASSWORD"
)

// EnvironmentStore exposes the INSTAGRAM_USERNAME / INSTAGRAM_PASSWORD pair
// as a read-only store
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a store reading the process environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// NewEnvironmentStoreFrom creates a store reading from lookup
func NewEnvironmentStoreFrom(lookup func(string) string) *EnvironmentStore {
	return &EnvironmentStore{getenv: lookup}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty username matches it.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	user, pass := e.getenv(EnvUsername), e.getenv(EnvPassword)
	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != user {
		return nil, ErrCredentialsNotFound
	}
	return &Account{Username: user, Password: pass, LastModified: time.Time{}}, nil
}

// List returns the environment account if both variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment holds credentials for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
