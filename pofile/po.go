// Package pofile implements reading and writing of gettext PO files.
//
// The model is deliberately small: the tool only needs to walk translated
// entries for placeholder validation and to round-trip files downloaded from
// Transifex, so comments are preserved as raw lines rather than parsed into
// categories.
package pofile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry represents a single translatable message in a PO file.
type Entry struct {
	// Comments are the raw comment lines preceding the entry ("#", "#.",
	// "#:", "#|" ...), without the "#," flags line.
	Comments []string
	// Flags are format flags from "#," lines (e.g. "fuzzy", "python-format").
	Flags []string
	// MsgCtxt is the message context (msgctxt).
	MsgCtxt string
	// MsgID is the untranslated string.
	MsgID string
	// MsgIDPlural is the untranslated plural string.
	MsgIDPlural string
	// MsgStr is the translated string (singular or the only form).
	MsgStr string
	// MsgStrPlural maps plural form index to translated string.
	MsgStrPlural map[int]string
	// Line is the line number of the msgid, for validation reports.
	Line int
}

// IsTranslated returns true if the entry has a non-empty translation.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" {
		return false // header entry
	}
	if e.IsFuzzy() {
		return false
	}
	if e.MsgIDPlural != "" {
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return len(e.MsgStrPlural) > 0
	}
	return e.MsgStr != ""
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	for _, f := range e.Flags {
		if f == "fuzzy" {
			return true
		}
	}
	return false
}

// File represents a parsed PO file.
type File struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the translatable message entries.
	Entries []*Entry
}

// TranslatedEntries returns all entries carrying a translation.
func (f *File) TranslatedEntries() []*Entry {
	var out []*Entry
	for _, e := range f.Entries {
		if e.IsTranslated() {
			out = append(out, e)
		}
	}
	return out
}

// Parse reads a PO file from r.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var current *Entry
	var lastField string // msgid/msgstr/... field continued by quoted lines
	lineNum := 0

	flush := func() {
		if current == nil {
			return
		}
		if current.MsgID == "" && f.Header == nil {
			f.Header = current
		} else {
			f.Entries = append(f.Entries, current)
		}
		current = nil
		lastField = ""
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			current = &Entry{MsgStrPlural: make(map[int]string)}
		}

		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#,") {
				for _, flag := range strings.Split(line[2:], ",") {
					if flag = strings.TrimSpace(flag); flag != "" {
						current.Flags = append(current.Flags, flag)
					}
				}
			} else {
				current.Comments = append(current.Comments, line)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "msgctxt "):
			current.MsgCtxt = unquote(strings.TrimPrefix(line, "msgctxt "))
			lastField = "msgctxt"

		case strings.HasPrefix(line, "msgid_plural "):
			current.MsgIDPlural = unquote(strings.TrimPrefix(line, "msgid_plural "))
			lastField = "msgid_plural"

		case strings.HasPrefix(line, "msgid "):
			current.MsgID = unquote(strings.TrimPrefix(line, "msgid "))
			current.Line = lineNum
			lastField = "msgid"

		case strings.HasPrefix(line, "msgstr["):
			var idx int
			if n, err := fmt.Sscanf(line, "msgstr[%d]", &idx); err != nil || n != 1 {
				return nil, fmt.Errorf("line %d: invalid msgstr index: %s", lineNum, line)
			}
			bracketEnd := strings.Index(line, "] ")
			if bracketEnd < 0 {
				return nil, fmt.Errorf("line %d: invalid msgstr format: %s", lineNum, line)
			}
			current.MsgStrPlural[idx] = unquote(line[bracketEnd+2:])
			lastField = fmt.Sprintf("msgstr[%d]", idx)

		case strings.HasPrefix(line, "msgstr "):
			current.MsgStr = unquote(strings.TrimPrefix(line, "msgstr "))
			lastField = "msgstr"

		case strings.HasPrefix(line, "\""):
			val := unquote(line)
			switch {
			case lastField == "msgctxt":
				current.MsgCtxt += val
			case lastField == "msgid":
				current.MsgID += val
			case lastField == "msgid_plural":
				current.MsgIDPlural += val
			case lastField == "msgstr":
				current.MsgStr += val
			case strings.HasPrefix(lastField, "msgstr["):
				var idx int
				fmt.Sscanf(lastField, "msgstr[%d]", &idx)
				current.MsgStrPlural[idx] += val
			}

		default:
			return nil, fmt.Errorf("line %d: unrecognized PO line: %s", lineNum, line)
		}
	}

	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PO file: %w", err)
	}
	return f, nil
}

// ParseFile reads a PO file from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write writes the PO file to a writer.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if f.Header != nil {
		writeEntry(bw, f.Header)
	}
	for _, e := range f.Entries {
		fmt.Fprintln(bw)
		writeEntry(bw, e)
	}
	return bw.Flush()
}

// WriteFile writes the PO file to disk.
func (f *File) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Write(out)
}

func writeEntry(w *bufio.Writer, e *Entry) {
	for _, c := range e.Comments {
		fmt.Fprintln(w, c)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.MsgCtxt != "" {
		writeQuotedField(w, "msgctxt", e.MsgCtxt)
	}
	writeQuotedField(w, "msgid", e.MsgID)
	if e.MsgIDPlural != "" {
		writeQuotedField(w, "msgid_plural", e.MsgIDPlural)
		for i := 0; i < len(e.MsgStrPlural); i++ {
			writeQuotedField(w, fmt.Sprintf("msgstr[%d]", i), e.MsgStrPlural[i])
		}
	} else {
		writeQuotedField(w, "msgstr", e.MsgStr)
	}
}

func writeQuotedField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}

	// Multiline: empty string on the first line, one quoted line per part.
	fmt.Fprintf(w, "%s \"\"\n", field)
	parts := strings.Split(value, "\n")
	for i, part := range parts {
		if i < len(parts)-1 {
			fmt.Fprintf(w, "%s\n", quote(part+"\n"))
		} else if part != "" {
			fmt.Fprintf(w, "%s\n", quote(part))
		}
	}
}

// quote produces a PO-style quoted string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return `"` + s + `"`
}

// unquote removes PO-style quoting from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				result.WriteByte('\n')
				i++
			case 't':
				result.WriteByte('\t')
				i++
			case '\\':
				result.WriteByte('\\')
				i++
			case '"':
				result.WriteByte('"')
				i++
			default:
				result.WriteByte(s[i])
			}
		} else {
			result.WriteByte(s[i])
		}
	}
	return result.String()
}
