// Package placeholder implements tokenization of template placeholders so
// that source strings can pass through an AI translation model without the
// model mangling format specifiers or interpolation variables.
//
// Seven template syntaxes are recognized. Before a model call, Escape
// replaces every placeholder with an opaque __PLACEHOLDER_<n>__ marker;
// after the call, Restore maps the markers back and VerifyIntegrity checks
// that no placeholder was dropped by the model.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Spec pairs a placeholder pattern with the template style it recognizes.
type Spec struct {
	// Pattern matches one placeholder occurrence.
	Pattern *regexp.Regexp
	// Style is the template dialect name (json, ruby, mako, ...).
	Style string
}

// Token records a single escaped placeholder occurrence.
type Token struct {
	// Original is the placeholder text as it appeared in the source.
	Original string
	// Style is the template dialect the placeholder belongs to.
	Style string
	// Token is the opaque marker substituted into the escaped text.
	Token string
}

// tokenFormat builds the marker for the n-th discovered placeholder.
func tokenFormat(n int) string {
	return fmt.Sprintf("__PLACEHOLDER_%d__", n)
}

// tokenIndexRe extracts the numeric index embedded in a marker.
var tokenIndexRe = regexp.MustCompile(`\d+`)

// DefaultSpecs returns the recognized placeholder syntaxes in match-priority
// order. The order is load-bearing: each pattern scans the text after all
// earlier patterns have already claimed their spans, so a syntax listed
// earlier wins over any later syntax sharing the same characters. In
// particular the brace pattern runs before double-brace, which means
// {{name}} is consumed as two single-brace placeholders; swapping entries
// changes which dialect claims shared characters and breaks compatibility
// with previously produced output.
func DefaultSpecs() []Spec {
	return []Spec{
		{regexp.MustCompile(`\{[^}]+\}`), "json"},       // {name}
		{regexp.MustCompile(`%\{[^}]+\}`), "ruby"},      // %{name}
		{regexp.MustCompile(`<%[^%>]+%>`), "mako"},      // <% name %>
		{regexp.MustCompile(`\$\{[^}]+\}`), "shell"},    // ${name}
		{regexp.MustCompile(`%\([^)]+\)[sd]`), "python"}, // %(name)s %(count)d
		{regexp.MustCompile(`%[sdfi]`), "c-style"},      // %s %d %f %i
		{regexp.MustCompile(`\{\{[^}]+\}\}`), "handlebars"}, // {{name}}
	}
}

// Escape replaces every placeholder in text with an opaque marker.
//
// Specs are applied in list order. Each spec scans left to right over the
// current state of the text: spans already replaced by markers are opaque to
// later specs, and the scan resumes immediately after each inserted marker so
// a marker can never be re-matched. Marker indices are assigned in discovery
// order starting at 0. The returned token list is in discovery order.
//
// Escaping is not safe when the source text itself contains literal
// __PLACEHOLDER_<n>__ substrings; callers feeding such text get markers that
// collide with the synthetic ones.
func Escape(text string, specs []Spec) (string, []Token) {
	escaped := text
	var tokens []Token

	for _, spec := range specs {
		pos := 0
		for pos < len(escaped) {
			loc := spec.Pattern.FindStringIndex(escaped[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			original := escaped[start:end]
			marker := tokenFormat(len(tokens))
			tokens = append(tokens, Token{
				Original: original,
				Style:    spec.Style,
				Token:    marker,
			})
			escaped = escaped[:start] + marker + escaped[end:]
			pos = start + len(marker)
		}
	}

	return escaped, tokens
}

// Restore replaces every marker in text with its original placeholder.
//
// Tokens are processed in ascending order of the numeric index embedded in
// the marker string, so the result is deterministic even in the pathological
// case where one token's original text contains another token's marker.
func Restore(text string, tokens []Token) string {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return tokenIndex(sorted[i].Token) < tokenIndex(sorted[j].Token)
	})

	restored := text
	for _, tok := range sorted {
		restored = strings.ReplaceAll(restored, tok.Token, tok.Original)
	}
	return restored
}

func tokenIndex(marker string) int {
	m := tokenIndexRe.FindString(marker)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

// VerifyIntegrity reports whether every token's original placeholder text is
// present in the restored translation. A false result means the model
// dropped or mangled a marker; callers must fall back to the untranslated
// source rather than ship the broken translation.
func VerifyIntegrity(restored string, tokens []Token) bool {
	for _, tok := range tokens {
		if !strings.Contains(restored, tok.Original) {
			return false
		}
	}
	return true
}

// extractRe matches the placeholder shapes the file validators compare:
// python %(name)s / %(name)d conversions, single-brace variables, and
// double-brace template variables.
var extractRe = regexp.MustCompile(`%\([^)]+\)[sd]|\{\{[^}]+\}\}|\{[^{}]+\}`)

// Extract returns the set of placeholders appearing in text. The validators
// compare the source set against the translation set to detect missing or
// invented placeholders.
func Extract(text string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range extractRe.FindAllString(text, -1) {
		set[m] = true
	}
	return set
}

// Diff returns the placeholders present in a but absent from b, sorted.
func Diff(a, b map[string]bool) []string {
	var missing []string
	for p := range a {
		if !b[p] {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}
