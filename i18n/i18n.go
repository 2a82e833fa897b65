// Package i18n localizes txsync's own user-facing messages.
//
// It wraps the gotext library to provide simple T() and Tf() functions.
// Translations are embedded in the binary via //go:embed and loaded at
// startup via Init().
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales embeds the compiled .po translation files.
// Directory structure: locales/{lang}/LC_MESSAGES/txsync.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for txsync.
const domain = "txsync"

// locale is the gotext locale object used for translations.
var locale *gotext.Locale

// Init initializes the i18n system. If lang is empty, it auto-detects from
// the environment variables LANGUAGE, LC_ALL, LC_MESSAGES, LANG (in that
// order, matching GNU gettext behavior).
//
// Init should be called once at program startup, before any T() calls.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}

	locale = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	locale.AddDomain(domain)
	locale.SetDomain(domain)
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
func T(msgid string) string {
	if locale == nil {
		return msgid
	}
	return locale.Get(msgid)
}

// Tf translates a format string and applies the arguments.
func Tf(msgid string, args ...any) string {
	return fmt.Sprintf(T(msgid), args...)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	// GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				val = strings.SplitN(val, ":", 2)[0]
			}
			// Strip encoding suffix (e.g. "fa_IR.UTF-8" -> "fa_IR")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			// "C" and "POSIX" mean no translation
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
