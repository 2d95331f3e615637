package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters for the credential vault.
const (
	vaultSaltLen   = 32
	vaultKeyLen    = 32
	vaultKDFRounds = 100000
)

// EncryptedFileStore keeps accounts in a single AES-GCM sealed file, the
// fallback for systems without a usable keychain. On disk the vault is
// salt || nonce || ciphertext with a JSON account map as plaintext; every
// write reseals the whole vault under a fresh salt.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewEncryptedFileStore opens the vault at filePath, resolving the
// passphrase up front so a misconfigured environment fails fast.
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	passphrase, err := vaultPassphrase()
	if err != nil {
		return nil, err
	}

	return &EncryptedFileStore{path: filePath, passphrase: passphrase}, nil
}

// Store adds or replaces the account in the vault.
func (s *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.unseal()
	if err != nil {
		return err
	}
	accounts[account.Username] = *account
	return s.seal(accounts)
}

// Retrieve gets the account stored for a username.
func (s *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.unseal()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns every account in the vault.
func (s *EncryptedFileStore) List() ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.unseal()
	if err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		a := account
		out = append(out, &a)
	}
	return out, nil
}

// Delete removes an account; the vault file itself goes with the last one.
func (s *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.unseal()
	if err != nil {
		return err
	}
	if _, ok := accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, username)

	if len(accounts) == 0 {
		return os.Remove(s.path)
	}
	return s.seal(accounts)
}

// Exists checks whether an account is stored for a username.
func (s *EncryptedFileStore) Exists(username string) bool {
	account, err := s.Retrieve(username)
	return err == nil && account != nil
}

// unseal reads and decrypts the vault. A missing file is an empty vault,
// not an error.
func (s *EncryptedFileStore) unseal() (map[string]Account, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Account{}, nil
		}
		return nil, fmt.Errorf("failed to read credential vault: %w", err)
	}

	if len(raw) < vaultSaltLen {
		return nil, errors.New("credential vault is truncated")
	}
	salt, sealed := raw[:vaultSaltLen], raw[vaultSaltLen:]

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("credential vault is truncated")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential vault: %w", err)
	}

	accounts := map[string]Account{}
	if err := json.Unmarshal(plaintext, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse credential vault: %w", err)
	}
	return accounts, nil
}

// seal encrypts the account map under a fresh salt and nonce and writes
// the vault atomically via a temporary file.
func (s *EncryptedFileStore) seal(accounts map[string]Account) error {
	plaintext, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	salt := make([]byte, vaultSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.cipherFor(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw := append(salt, gcm.Seal(nonce, nonce, plaintext, nil)...)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write credential vault: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// cipherFor derives the AEAD for a salt from the store passphrase.
func (s *EncryptedFileStore) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, vaultKDFRounds, vaultKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// vaultPassphrase resolves the vault passphrase: the environment wins,
// then a sidecar file under the config directory, generated on first use.
func vaultPassphrase() ([]byte, error) {
	if pass := os.Getenv("CANVASFETCH_PASSPHRASE"); pass != "" {
		return []byte(pass), nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	sidecar := filepath.Join(configDir, ".passphrase")

	if content, err := os.ReadFile(sidecar); err == nil && len(content) > 0 {
		return content, nil
	}

	generated := make([]byte, 32)
	if _, err := rand.Read(generated); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	encoded := []byte(base64.URLEncoding.EncodeToString(generated))

	if err := os.WriteFile(sidecar, encoded, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return encoded, nil
}
