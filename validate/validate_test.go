// Package validate contains tests for translation file validation.
package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// PO files
// ---------------------------------------------------------------------------

const validPO = `msgid ""
msgstr "Language: fa\n"

msgid "Hello %(user)s"
msgstr "سلام %(user)s"

msgid "No placeholders"
msgstr "بدون جایگزین"

msgid "Skipped {because} untranslated"
msgstr ""
`

const brokenPO = `msgid ""
msgstr "Language: fa\n"

msgid "You have {count} items"
msgstr "شما موارد دارید"
`

func TestFile_ValidPO(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.po", validPO)
	if err := File(path); err != nil {
		t.Errorf("error: %v", err)
	}
}

func TestFile_POWithMissingPlaceholder(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.po", brokenPO)
	err := File(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "missing placeholders: {count}") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("err = %v, want line number", err)
	}
}

func TestFile_POWithExtraPlaceholder(t *testing.T) {
	po := `msgid "Plain text"
msgstr "متن {extra}"
`
	path := writeFile(t, t.TempDir(), "fa.po", po)
	err := File(path)
	if err == nil || !strings.Contains(err.Error(), "extra placeholders: {extra}") {
		t.Errorf("err = %v", err)
	}
}

func TestFile_MalformedPO(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.po", "this is not a po file\n")
	if err := File(path); err == nil {
		t.Error("expected parse error")
	}
}

// ---------------------------------------------------------------------------
// JSON files
// ---------------------------------------------------------------------------

func TestFile_ValidJSON(t *testing.T) {
	content := `{
  "greeting": {"source": "Hello {name}", "translation": "سلام {name}"},
  "nested": {
    "farewell": {"source": "Bye %(user)s", "translation": "خداحافظ %(user)s"}
  },
  "bare": "plain string leaf"
}`
	path := writeFile(t, t.TempDir(), "fa.json", content)
	if err := File(path); err != nil {
		t.Errorf("error: %v", err)
	}
}

func TestFile_JSONWithMismatch(t *testing.T) {
	content := `{
  "a": {"source": "Hello {name}", "translation": "سلام"},
  "b": {"nested": {"source": "{x} and {{y}}", "translation": "{x} only"}}
}`
	path := writeFile(t, t.TempDir(), "fa.json", content)
	err := File(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "key a") || !strings.Contains(err.Error(), "missing placeholders: {name}") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "key b.nested") || !strings.Contains(err.Error(), "{{y}}") {
		t.Errorf("err = %v, want nested key path", err)
	}
}

func TestFile_JSONInvalidSyntax(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.json", `{"broken":`)
	if err := File(path); err == nil || !strings.Contains(err.Error(), "invalid JSON format") {
		t.Errorf("err = %v", err)
	}
}

func TestFile_JSONNotADictionary(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.json", `["a","b"]`)
	if err := File(path); err == nil || !strings.Contains(err.Error(), "dictionary") {
		t.Errorf("err = %v", err)
	}
}

func TestFile_JSONInvalidValueType(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fa.json", `{"count": 42}`)
	if err := File(path); err == nil || !strings.Contains(err.Error(), "invalid value type") {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// YAML files
// ---------------------------------------------------------------------------

func TestFile_ValidYAML(t *testing.T) {
	content := `greeting:
  source: "Hello {name}"
  translation: "Bonjour {name}"
section:
  inner:
    source: "%(count)s items"
    translation: "%(count)s éléments"
`
	path := writeFile(t, t.TempDir(), "fr.yaml", content)
	if err := File(path); err != nil {
		t.Errorf("error: %v", err)
	}
}

func TestFile_YAMLWithMismatch(t *testing.T) {
	content := `greeting:
  source: "Hello {name}"
  translation: "Bonjour"
`
	path := writeFile(t, t.TempDir(), "fr.yml", content)
	err := File(path)
	if err == nil || !strings.Contains(err.Error(), "missing placeholders: {name}") {
		t.Errorf("err = %v", err)
	}
}

func TestFile_YAMLInvalidSyntax(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fr.yaml", "key: [unclosed\n")
	if err := File(path); err == nil || !strings.Contains(err.Error(), "invalid YAML format") {
		t.Errorf("err = %v", err)
	}
}

func TestFile_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hi")
	if err := File(path); err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Directory
// ---------------------------------------------------------------------------

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.po", validPO)
	writeFile(t, dir, filepath.Join("sub", "bad.po"), brokenPO)
	writeFile(t, dir, "good.json", `{"k": {"source": "a", "translation": "b"}}`)
	writeFile(t, dir, "ignored.txt", "not a translation file")

	report, err := Directory(dir, FormatAll)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(report.Valid) != 2 {
		t.Errorf("got %d valid files, want 2: %v", len(report.Valid), report.Valid)
	}
	if len(report.Invalid) != 1 {
		t.Fatalf("got %d invalid files, want 1: %v", len(report.Invalid), report.Invalid)
	}
	if !report.HasErrors() {
		t.Error("HasErrors() = false")
	}
	if report.Errors[0].File != report.Invalid[0] {
		t.Errorf("Errors[0].File = %q, Invalid[0] = %q", report.Errors[0].File, report.Invalid[0])
	}
}

func TestDirectory_FormatFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.po", validPO)
	writeFile(t, dir, "b.json", `{"broken":`)

	// Only PO requested: the broken JSON file is never inspected.
	report, err := Directory(dir, FormatPO)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if report.HasErrors() {
		t.Errorf("unexpected errors: %+v", report.Errors)
	}
	if len(report.Valid) != 1 {
		t.Errorf("got %d valid files, want 1", len(report.Valid))
	}
}

func TestDirectory_Empty(t *testing.T) {
	report, err := Directory(t.TempDir(), FormatAll)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if report.HasErrors() || len(report.Valid) != 0 {
		t.Errorf("report = %+v", report)
	}
}
