package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Account holds the API credentials for one booru site
type Account struct {
	// Site is the lower-cased host of the site's base URL
	Site         string    `json:"site"`
	Username     string    `json:"username"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is one backend holding per-site accounts
type CredentialStore interface {
	// Store saves credentials for a site
	Store(account *Account) error

	// Retrieve gets credentials for a site
	Retrieve(site string) (*Account, error)

	// List returns every account the backend holds
	List() ([]*Account, error)

	// Delete removes credentials for a site
	Delete(site string) error

	// Exists checks if credentials exist for a site
	Exists(site string) bool
}

// Manager tries its stores in turn until one succeeds
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keyring when
// available, an encrypted file, and finally the environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
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

// SiteKey derives the store key from a base URL. A bare host is accepted.
func SiteKey(baseURL string) (string, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return "", errors.New("site is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid site %q", baseURL)
	}
	return strings.ToLower(u.Host), nil
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account.Site == "" {
		return errors.New("site is required")
	}
	if account.Username == "" {
		return errors.New("username is required")
	}
	if account.APIKey == "" {
		return errors.New("API key is required")
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

// Retrieve returns the account of the first store that knows the site
func (m *Manager) Retrieve(site string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(site); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for site: %s", ErrCredentialsNotFound, site)
}

// RetrieveForURL gets the credentials stored for the host of baseURL
func (m *Manager) RetrieveForURL(baseURL string) (*Account, error) {
	site, err := SiteKey(baseURL)
	if err != nil {
		return nil, err
	}
	return m.Retrieve(site)
}

// List merges the accounts of every store, sorted by site
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			// most recently modified wins
			if existing, ok := accountMap[account.Site]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Site] = account
			}
		}
	}

	result := make([]*Account, 0, len(accountMap))
	for _, account := range accountMap {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Site < result[j].Site })

	return result, nil
}

// Delete removes the site from every writable store
func (m *Manager) Delete(site string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(site); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for site: %s", ErrCredentialsNotFound, site)
	}

	return nil
}

// getConfigDir returns the per-user boorudl directory, creating it
func getConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(base, "boorudl")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount creates a copy of the account with the API key masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	return &Account{
		Site:         account.Site,
		Username:     account.Username,
		APIKey:       maskString(account.APIKey),
		LastModified: account.LastModified,
	}
}

// maskString keeps the first and last four characters
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
