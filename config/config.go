// Package config loads tool configuration from the environment (optionally
// seeded from a .env file) and from the project's transifex.yml resource
// mapping.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the environment-derived settings.
type Config struct {
	// APIToken is the Transifex API bearer token.
	APIToken string
	// Organization is the Transifex organization slug.
	Organization string
	// Project is the Transifex project slug.
	Project string
	// TargetLanguages are the language codes to process.
	TargetLanguages []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win
// over .env values.
func Load() (*Config, error) {
	// Ignore a missing .env; the variables may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		APIToken:     os.Getenv("TRANSIFEX_API_TOKEN"),
		Organization: os.Getenv("TRANSIFEX_ORGANIZATION"),
		Project:      os.Getenv("TRANSIFEX_PROJECT"),
	}
	for _, lang := range strings.Split(os.Getenv("TARGET_LANGUAGES"), ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			cfg.TargetLanguages = append(cfg.TargetLanguages, lang)
		}
	}

	var missing []string
	if cfg.APIToken == "" {
		missing = append(missing, "TRANSIFEX_API_TOKEN")
	}
	if cfg.Organization == "" {
		missing = append(missing, "TRANSIFEX_ORGANIZATION")
	}
	if cfg.Project == "" {
		missing = append(missing, "TRANSIFEX_PROJECT")
	}
	if len(cfg.TargetLanguages) == 0 {
		missing = append(missing, "TARGET_LANGUAGES")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
