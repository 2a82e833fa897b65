// Package validate checks translation files (PO, JSON, YAML) for
// placeholder integrity: every placeholder appearing in a source string must
// appear in its translation, and a translation must not invent placeholders
// absent from the source.
package validate

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edSPIRIT/transifex-tools/placeholder"
	"github.com/edSPIRIT/transifex-tools/pofile"
)

// FileError describes why one file failed validation.
type FileError struct {
	// File is the path of the invalid file.
	File string
	// Message is the human-readable error description.
	Message string
}

// Report accumulates validation results over a set of files.
type Report struct {
	// Valid lists files that passed.
	Valid []string
	// Invalid lists files that failed.
	Invalid []string
	// Errors carries one entry per invalid file.
	Errors []FileError
}

// add records the outcome for one file.
func (r *Report) add(path string, err error) {
	if err == nil {
		r.Valid = append(r.Valid, path)
		return
	}
	r.Invalid = append(r.Invalid, path)
	r.Errors = append(r.Errors, FileError{File: path, Message: err.Error()})
}

// HasErrors reports whether any file failed.
func (r *Report) HasErrors() bool {
	return len(r.Invalid) > 0
}

// Format selects which file formats Directory validates.
type Format string

const (
	FormatAll  Format = "all"
	FormatPO   Format = "po"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// matches reports whether the file at path belongs to the format.
func (f Format) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch f {
	case FormatPO:
		return ext == ".po"
	case FormatJSON:
		return ext == ".json"
	case FormatYAML:
		return ext == ".yaml" || ext == ".yml"
	default:
		return ext == ".po" || ext == ".json" || ext == ".yaml" || ext == ".yml"
	}
}

// File validates a single translation file, dispatching on its extension.
func File(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".po":
		return validatePO(path)
	case ".json":
		return validateJSON(path)
	case ".yaml", ".yml":
		return validateYAML(path)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}
}

// Directory validates every matching translation file under dir.
func Directory(dir string, format Format) (*Report, error) {
	report := &Report{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !format.matches(path) {
			return nil
		}
		report.add(path, File(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return report, nil
}

// ---------------------------------------------------------------------------
// PO validation
// ---------------------------------------------------------------------------

func validatePO(path string) error {
	f, err := pofile.ParseFile(path)
	if err != nil {
		return fmt.Errorf("PO file validation error: %w", err)
	}

	var problems []string
	for _, entry := range f.Entries {
		// Untranslated entries are the translator's problem, not ours.
		if entry.MsgStr == "" {
			continue
		}
		if msg := comparePlaceholders(entry.MsgID, entry.MsgStr); msg != "" {
			problems = append(problems, fmt.Sprintf("line %d:\n   source: %s\n   translation: %s\n   %s",
				entry.Line, entry.MsgID, entry.MsgStr, msg))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "\n\n"))
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSON / YAML validation
// ---------------------------------------------------------------------------

func validateJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("JSON must contain a dictionary of translations")
	}
	return checkTree(root)
}

func validateYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML format: %w", err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("YAML must contain a dictionary of translations")
	}
	return checkTree(root)
}

// checkTree walks a nested translation map. Nodes holding both "source" and
// "translation" string values are checked for placeholder consistency; other
// maps are descended into; strings are terminal and carry no pair to check.
func checkTree(root map[string]any) error {
	var problems []string

	var walk func(node map[string]any, path string)
	walk = func(node map[string]any, path string) {
		// Deterministic traversal for stable reports.
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := node[key]
			keyPath := key
			if path != "" {
				keyPath = path + "." + key
			}

			switch v := value.(type) {
			case map[string]any:
				source, hasSource := v["source"].(string)
				translation, hasTranslation := v["translation"].(string)
				if hasSource && hasTranslation {
					if msg := comparePlaceholders(source, translation); msg != "" {
						problems = append(problems, fmt.Sprintf("key %s:\n   source: %s\n   translation: %s\n   %s",
							keyPath, source, translation, msg))
					}
					continue
				}
				walk(v, keyPath)
			case string:
				// Bare string leaf: nothing to compare against.
			default:
				problems = append(problems, fmt.Sprintf("key %s: invalid value type %T", keyPath, value))
			}
		}
	}
	walk(root, "")

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "\n\n"))
	}
	return nil
}

// comparePlaceholders returns a description of placeholder mismatches
// between a source string and its translation, or "" when the sets agree.
func comparePlaceholders(source, translation string) string {
	srcSet := placeholder.Extract(source)
	trSet := placeholder.Extract(translation)

	missing := placeholder.Diff(srcSet, trSet)
	extra := placeholder.Diff(trSet, srcSet)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing placeholders: %s", strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra placeholders: %s", strings.Join(extra, ", ")))
	}
	return strings.Join(parts, "; ")
}
