// Package jsonfile implements the per-language JSON result files the
// translate command writes under translations/. Each file maps resource
// names to the records produced for that resource; successive runs merge
// into the existing file rather than overwrite it.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Actions recorded on a translation record.
const (
	ActionTranslate = "translate"
	ActionReview    = "review"
)

// Record is one processed string in a per-language result file.
type Record struct {
	Key         string `json:"key"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
	Context     string `json:"context,omitempty"`
	// Action is "translate" for newly generated translations or "review"
	// for reviewed existing ones.
	Action string `json:"action"`
	// Approved is meaningful only for review records.
	Approved bool `json:"approved,omitempty"`
}

// Store is the content of one per-language file: resource name → records.
type Store map[string][]Record

// Path returns the result file path for a language.
func Path(dir, lang string) string {
	return filepath.Join(dir, lang+".json")
}

// Load reads a per-language store. A missing file yields an empty store.
func Load(path string) (Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return store, nil
}

// Merge appends records for one resource into the language's file, creating
// it (and its directory) as needed.
func Merge(dir, lang, resource string, records []Record) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	path := Path(dir, lang)
	store, err := Load(path)
	if err != nil {
		return "", err
	}
	store[resource] = append(store[resource], records...)

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
