// Package auth resolves the portal credentials the login flow types into
// the sign-in form. Resolution order: environment variables, system
// keychain, encrypted file, interactive prompt. Credentials entered at the
// prompt can be written back to the first writable backend so the next run
// is unattended.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account holds one portal login. BaseURL scopes the credentials: the same
// person may have accounts on several portals.
type Account struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	BaseURL      string    `json:"base_url,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is one storage backend for portal accounts.
type CredentialStore interface {
	// Store saves an account.
	Store(account *Account) error

	// Retrieve gets the account for a username.
	Retrieve(username string) (*Account, error)

	// List returns all stored accounts.
	List() ([]*Account, error)

	// Delete removes the account for a username.
	Delete(username string) error

	// Exists checks whether an account is stored for a username.
	Exists(username string) bool
}

// Manager chains credential stores with fallback.
type Manager struct {
	stores []CredentialStore
}

// NewManager builds the default store chain: keychain when available, the
// encrypted file always, environment variables last.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit chain. Tests use
// this with mock stores.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves an account to the first store that accepts it.
func (m *Manager) Store(account *Account) error {
	if account.Username == "" {
		return errors.New("username is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets an account from the first store that has it.
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for user: %s", username)
}

// Resolve produces a usable account for a run. username may be empty, in
// which case the environment or any single stored account wins; as a last
// resort the user is prompted on the terminal.
func (m *Manager) Resolve(username string) (*Account, error) {
	// Environment first: CI and scripted runs set these.
	if account, err := NewEnvironmentStore().Retrieve(username); err == nil {
		return account, nil
	}

	if username != "" {
		if account, err := m.Retrieve(username); err == nil {
			return account, nil
		}
	} else if accounts, err := m.List(); err == nil && len(accounts) == 1 {
		return accounts[0], nil
	}

	account, err := PromptForCredentials(username)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// List returns all stored accounts across stores, newest version of each.
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Username] = account
			}
		}
	}

	var result []*Account
	for _, account := range accountMap {
		result = append(result, account)
	}

	return result, nil
}

// Delete removes an account from every store holding it.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for user: %s", username)
	}

	return nil
}

// getConfigDir returns the per-user configuration directory.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "canvasfetch")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "canvasfetch")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "canvasfetch")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "canvasfetch")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
