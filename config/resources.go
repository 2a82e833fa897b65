// transifex.yml resource mapping support.
//
// The transifex.yml file (Transifex git integration format) describes where
// each resource's translation files live on disk. The async fetch command
// uses it to decide the output path for every downloaded file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter types in transifex.yml.
const (
	FilterTypeDir  = "dir"
	FilterTypeFile = "file"
)

// ResourceConfig describes where one resource's translation files live.
type ResourceConfig struct {
	// Type is "dir" or "file".
	Type string
	// Format is the Transifex file format (PO, KEYVALUEJSON, ...).
	Format string
	// PathExpression is the translation file path with a <lang> placeholder.
	PathExpression string
}

// transifexYML models the subset of transifex.yml the tool reads.
type transifexYML struct {
	Git struct {
		Filters []struct {
			FilterType       string `yaml:"filter_type"`
			FileFormat       string `yaml:"file_format"`
			SourceFile       string `yaml:"source_file"`
			SourceFileDir    string `yaml:"source_file_dir"`
			TranslationFiles string `yaml:"translation_files_expression"`
		} `yaml:"filters"`
	} `yaml:"git"`
}

// ResourceMap maps project names from transifex.yml to their configuration.
// Lookup is tolerant of the naming drift between Transifex resource names
// and repo paths (case, underscores, -input/-js suffixes).
type ResourceMap struct {
	configs map[string]ResourceConfig
	// normalized maps a normalized alias to the canonical name.
	normalized map[string]string
}

// LoadResourceMap parses a transifex.yml file into a ResourceMap.
func LoadResourceMap(path string) (*ResourceMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc transifexYML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rm := &ResourceMap{
		configs:    make(map[string]ResourceConfig),
		normalized: make(map[string]string),
	}

	for _, f := range doc.Git.Filters {
		// The project name is the second path element of the source
		// location (translations/<project>/...).
		var source string
		switch f.FilterType {
		case FilterTypeDir:
			source = f.SourceFileDir
		case FilterTypeFile:
			source = f.SourceFile
		default:
			continue
		}
		parts := strings.Split(source, "/")
		if len(parts) < 3 {
			continue
		}
		name := parts[1]

		rm.configs[name] = ResourceConfig{
			Type:           f.FilterType,
			Format:         f.FileFormat,
			PathExpression: f.TranslationFiles,
		}
		rm.addAliases(name)
	}

	return rm, nil
}

// addAliases registers the normalized lookup aliases for a canonical name.
func (rm *ResourceMap) addAliases(name string) {
	norm := normalizeName(name)
	rm.normalized[norm] = name
	if base := strings.TrimSuffix(norm, "-input"); base != norm {
		rm.normalized[base] = name
	}
}

// normalizeName lowers case and folds underscores and dots to dashes.
func normalizeName(name string) string {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, "_", "-")
	n = strings.ReplaceAll(n, ".", "-")
	return n
}

// Names returns the canonical configured resource names.
func (rm *ResourceMap) Names() []string {
	names := make([]string, 0, len(rm.configs))
	for name := range rm.configs {
		names = append(names, name)
	}
	return names
}

// Len returns the number of configured resources.
func (rm *ResourceMap) Len() int {
	return len(rm.configs)
}

// Match resolves a Transifex resource name to its configuration, trying the
// same name variations the resource names drift through: extension stripped,
// normalized, path elements, -input and -js suffixes removed.
func (rm *ResourceMap) Match(resourceName string) (string, ResourceConfig, bool) {
	base := resourceName
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	norm := normalizeName(base)

	// Dotted names are ambiguous between "file.ext" and "name.with.dots";
	// try the full normalized name first, then the extension-stripped one.
	variations := []string{normalizeName(resourceName), norm}
	if strings.Contains(norm, "/") {
		for _, part := range strings.Split(norm, "/") {
			variations = append(variations, part, strings.TrimSuffix(part, "-input"))
		}
	}
	variations = append(variations, strings.TrimSuffix(norm, "-js"))

	for _, v := range variations {
		if canonical, ok := rm.normalized[v]; ok {
			return canonical, rm.configs[canonical], true
		}
	}
	return "", ResourceConfig{}, false
}

// OutputPath computes the on-disk path for a resource's translation file in
// lang. PO resources under dir filters are routed into the gettext
// LC_MESSAGES layout, with djangojs.po for JavaScript resources.
func (rc ResourceConfig) OutputPath(resourceName, lang string) string {
	path := strings.ReplaceAll(rc.PathExpression, "<lang>", lang)

	if rc.Type == FilterTypeDir && rc.Format == "PO" {
		domain := "django.po"
		if strings.HasSuffix(normalizeName(resourceName), "-js") {
			domain = "djangojs.po"
		}
		path = filepath.Join(filepath.Dir(path), "LC_MESSAGES", domain)
	}
	return path
}
