// Package csvfile implements reading and writing of the CSV files the tool
// uses to cache fetched strings and to report review verdicts.
//
// Two layouts exist. Item files cache strings fetched from Transifex
// (untranslated_<lang>.csv has no Translation column, unreviewed_<lang>.csv
// has one). Result files carry review verdicts with Is Valid and Explanation
// columns appended.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Item is one translatable string pulled from a Transifex resource.
type Item struct {
	// Resource is the display name of the Transifex resource.
	Resource string
	// Key uniquely identifies the string within its resource.
	Key string
	// Source is the source-language text.
	Source string
	// Translation is the existing target-language text (empty when
	// untranslated).
	Translation string
	// Context is the translator-facing context note.
	Context string
}

// Result is a classified review verdict for one Item.
type Result struct {
	Item
	// IsValid is true when the reviewer approved the translation.
	IsValid bool
	// Explanation is the reviewer's reason for the verdict.
	Explanation string
}

// Column headers shared by all item/result files.
const (
	colResource    = "Resource"
	colKey         = "String Key"
	colSource      = "Source String"
	colTranslation = "Translation"
	colContext     = "Context"
	colIsValid     = "Is Valid"
	colExplanation = "Explanation"
)

// itemHeader returns the header row for an item file.
func itemHeader(withTranslation bool) []string {
	if withTranslation {
		return []string{colResource, colKey, colSource, colTranslation, colContext}
	}
	return []string{colResource, colKey, colSource, colContext}
}

// ReadItems reads an item CSV. Files written for untranslated strings lack
// the Translation column; a missing column value is treated as an empty
// translation.
func ReadItems(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Map header names to column positions so both layouts parse.
	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, required := range []string{colResource, colKey, colSource} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	items := make([]Item, 0, len(rows)-1)
	for _, row := range rows[1:] {
		items = append(items, Item{
			Resource:    field(row, colResource),
			Key:         field(row, colKey),
			Source:      field(row, colSource),
			Translation: field(row, colTranslation),
			Context:     field(row, colContext),
		})
	}
	return items, nil
}

// WriteItems writes an item CSV, creating parent directories as needed.
// withTranslation selects the unreviewed layout (Translation column present).
func WriteItems(path string, items []Item, withTranslation bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(itemHeader(withTranslation)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, it := range items {
		row := []string{it.Resource, it.Key, it.Source}
		if withTranslation {
			row = append(row, it.Translation)
		}
		row = append(row, it.Context)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row for %s: %w", it.Key, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

// WriteResults writes a review result CSV with the full seven-column layout.
func WriteResults(path string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{colResource, colKey, colSource, colTranslation, colContext, colIsValid, colExplanation}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, res := range results {
		row := []string{
			res.Resource,
			res.Key,
			res.Source,
			res.Translation,
			res.Context,
			strconv.FormatBool(res.IsValid),
			res.Explanation,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row for %s: %w", res.Key, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

// ReadResults reads a review result CSV back into Result records.
func ReadResults(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	results := make([]Result, 0, len(rows)-1)
	for _, row := range rows[1:] {
		valid, _ := strconv.ParseBool(field(row, colIsValid))
		results = append(results, Result{
			Item: Item{
				Resource:    field(row, colResource),
				Key:         field(row, colKey),
				Source:      field(row, colSource),
				Translation: field(row, colTranslation),
				Context:     field(row, colContext),
			},
			IsValid:     valid,
			Explanation: field(row, colExplanation),
		})
	}
	return results, nil
}
