// Package lockfile implements txsync.lock, a checksum ledger of source
// strings already translated per language and resource. It enables
// incremental translation: only new or changed strings are sent to the AI
// provider, saving tokens and time.
//
// The lock file lives next to the per-language result files in the
// translations directory.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "txsync.lock"

// Version is the lock file format version.
const Version = 1

// LockFile tracks MD5 checksums of translated source strings.
// Targets are "<lang>/<resource>" pairs; keys are string keys.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// Target builds the ledger key for a language/resource pair.
func Target(lang, resource string) string {
	return lang + "/" + resource
}

// Load reads the lock file from dir. A missing file yields an empty ledger.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	return lf, nil
}

// Save writes the lock file to disk, creating the directory as needed.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(lf.path), err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// EntryContent builds the hashed content for a string. The context note is
// included so a context change triggers re-translation.
func EntryContent(source, context string) string {
	if context != "" {
		return source + "\x00" + context
	}
	return source
}

// IsChanged reports whether a source string is new or has changed since it
// was last translated.
func (lf *LockFile) IsChanged(target, key, content string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[target]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(content)
}

// Update records the checksum of a source string after translation.
func (lf *LockFile) Update(target, key, content string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][key] = Hash(content)
}

// Clean removes ledger entries for keys no longer present in the resource.
func (lf *LockFile) Clean(target string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// Stats returns the number of targets and total keys in the ledger.
func (lf *LockFile) Stats() (targets, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Targets returns the sorted ledger targets.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary returns a human-readable summary of the ledger.
func (lf *LockFile) Summary() string {
	targets, keys := lf.Stats()
	if targets == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		lf.mu.Lock()
		n := len(lf.Checksums[t])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d keys", t, n))
	}
	return fmt.Sprintf("%d targets, %d keys (%s)", targets, keys, strings.Join(parts, ", "))
}
