package auth

import (
	"os"
	"time"
)

const (
	envSessionID = "KNEXPORT_SESSION_ID"
	envCSRFToken = "KNEXPORT_CSRF_TOKEN"
	envUserAgent = "KNEXPORT_USER_AGENT"
)

// EnvironmentStore reads a session from KNEXPORT_SESSION_ID and friends.
// It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Account) error {
	return ErrStoreUnavailable
}

// Retrieve answers for any name; the environment holds a single session.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	sessionID := os.Getenv(envSessionID)
	if sessionID == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "env"
	}
	return &Account{
		Name:         name,
		SessionID:    sessionID,
		CSRFToken:    os.Getenv(envCSRFToken),
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(envSessionID) != ""
}
