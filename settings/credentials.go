// Package settings provides persistent storage for txsync user settings,
// currently the AI provider API keys.
//
// Credentials are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/txsync/auth.json  (default: ~/.local/share/txsync/auth.json)
//
// The file is a JSON object keyed by provider ID. File permissions are 0600
// (owner read/write only).
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. TXSYNC_API_KEY / OPENAI_API_KEY environment variables
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "txsync"
	fileName    = "auth.json"
)

// Info is the stored credential for one provider.
type Info struct {
	// Key is the API key.
	Key string `json:"key"`
	// BaseURL is the custom endpoint URL (custom-openai).
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// dataDir returns the XDG data directory for txsync.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}
	if store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// Get returns the credential for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// SetAPIKey stores an API key for a provider (upsert).
func SetAPIKey(providerID, key string) error {
	store := Load()
	info := store[providerID]
	if info == nil {
		info = &Info{}
	}
	info.Key = key
	store[providerID] = info
	return Save(store)
}

// SetAPIKeyWithBaseURL stores an API key and base URL for custom-openai.
func SetAPIKeyWithBaseURL(providerID, key, baseURL string) error {
	store := Load()
	store[providerID] = &Info{Key: key, BaseURL: baseURL}
	return Save(store)
}

// GetAPIKey retrieves the stored API key for a provider.
// Returns empty string if not found.
func GetAPIKey(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.Key
}

// GetBaseURL retrieves the stored base URL for a provider.
// Returns empty string if not found.
func GetBaseURL(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.BaseURL
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
