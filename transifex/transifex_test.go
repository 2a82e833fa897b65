// Package transifex contains tests for the REST API client against a local
// httptest server.
package transifex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testClient returns a Client pointed at the test server.
func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("tok", "acme", "website")
	if err != nil {
		t.Fatal(err)
	}
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()
	return c
}

// ---------------------------------------------------------------------------
// Construction and identifiers
// ---------------------------------------------------------------------------

func TestNewClient_RequiresAllFields(t *testing.T) {
	cases := [][3]string{
		{"", "org", "proj"},
		{"tok", "", "proj"},
		{"tok", "org", ""},
	}
	for _, c := range cases {
		if _, err := NewClient(c[0], c[1], c[2]); err == nil {
			t.Errorf("NewClient(%q, %q, %q): expected error", c[0], c[1], c[2])
		}
	}
	if _, err := NewClient("tok", "org", "proj"); err != nil {
		t.Errorf("error: %v", err)
	}
}

func TestResourceID(t *testing.T) {
	c, _ := NewClient("tok", "acme", "website")

	if got := c.resourceID("frontend"); got != "o:acme:p:website:r:frontend" {
		t.Errorf("bare slug: got %q", got)
	}
	// A full identifier passes through with its slug re-expanded.
	if got := c.resourceID("o:acme:p:website:r:frontend"); got != "o:acme:p:website:r:frontend" {
		t.Errorf("full id: got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func TestResources_Paged(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("filter[project]"); got != "o:acme:p:website" && r.URL.Query().Get("page") == "" {
			t.Errorf("filter[project] = %q", got)
		}

		w.Header().Set("Content-Type", "application/vnd.api+json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"data":[{"id":"o:acme:p:website:r:backend","attributes":{"name":"Backend","slug":"backend"}}],"links":{"next":""}}`)
			return
		}
		fmt.Fprintf(w, `{"data":[{"id":"o:acme:p:website:r:frontend","attributes":{"name":"Frontend","slug":"frontend"}}],"links":{"next":"%s/resources?page=2"}}`, srv.URL)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resources, err := c.Resources(context.Background())
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("got %d resources, want 2", len(resources))
	}
	if resources[0].Name != "Frontend" || resources[1].Slug != "backend" {
		t.Errorf("resources = %+v", resources)
	}
}

// ---------------------------------------------------------------------------
// Translations
// ---------------------------------------------------------------------------

const translationsBody = `{
  "data": [
    {
      "attributes": {"strings": null},
      "relationships": {"resource_string": {"data": {"id": "str1", "type": "resource_strings"}}}
    },
    {
      "attributes": {"strings": {"other": "سلام"}},
      "relationships": {"resource_string": {"data": {"id": "str2", "type": "resource_strings"}}}
    },
    {
      "attributes": {"strings": null},
      "relationships": {"resource_string": {"data": {"id": "str3", "type": "resource_strings"}}}
    }
  ],
  "included": [
    {"type": "resource_strings", "id": "str1", "attributes": {"key": "greeting", "context": "on login", "strings": {"other": "Hello"}}},
    {"type": "resource_strings", "id": "str2", "attributes": {"key": "farewell", "context": "", "strings": {"other": "Goodbye"}}},
    {"type": "resource_strings", "id": "str3", "attributes": {"key": "empty.source", "context": "", "strings": {"other": ""}}}
  ],
  "links": {"next": ""}
}`

func TestUntranslatedStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("filter[translated]"); got != "false" {
			t.Errorf("filter[translated] = %q", got)
		}
		if got := q.Get("filter[language]"); got != "l:fa" {
			t.Errorf("filter[language] = %q", got)
		}
		if got := q.Get("include"); got != "resource_string" {
			t.Errorf("include = %q", got)
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		fmt.Fprint(w, translationsBody)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	strs, err := c.UntranslatedStrings(context.Background(), "frontend", "fa")
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	// str3 has an empty source and is skipped.
	if len(strs) != 2 {
		t.Fatalf("got %d strings, want 2: %+v", len(strs), strs)
	}
	if strs[0].Key != "greeting" || strs[0].Source != "Hello" || strs[0].Context != "on login" {
		t.Errorf("strs[0] = %+v", strs[0])
	}
	if strs[1].Key != "farewell" || strs[1].Translation != "سلام" {
		t.Errorf("strs[1] = %+v", strs[1])
	}
}

func TestUnreviewedStrings_Filter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter[reviewed]"); got != "false" {
			t.Errorf("filter[reviewed] = %q", got)
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		fmt.Fprint(w, `{"data":[],"included":[],"links":{"next":""}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if _, err := c.UnreviewedStrings(context.Background(), "frontend", "fa"); err != nil {
		t.Fatalf("error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Updates and reviews
// ---------------------------------------------------------------------------

func TestUpdateTranslation(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/resource_strings":
			if got := r.URL.Query().Get("filter[key]"); got != "greeting" {
				t.Errorf("filter[key] = %q", got)
			}
			w.Header().Set("Content-Type", "application/vnd.api+json")
			fmt.Fprint(w, `{"data":[{"id":"o:acme:p:website:r:frontend:s:abc123"}]}`)

		case r.Method == http.MethodPatch:
			wantPath := "/resource_translations/" + "o:acme:p:website:r:frontend:s:abc123:l:fa"
			if r.URL.Path != wantPath {
				t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
			}
			if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
				t.Errorf("decoding patch body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{}`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.UpdateTranslation(context.Background(), "frontend", "fa", "greeting", "سلام"); err != nil {
		t.Fatalf("error: %v", err)
	}

	data := patched["data"].(map[string]any)
	if data["type"] != "resource_translations" {
		t.Errorf("type = %v", data["type"])
	}
	attrs := data["attributes"].(map[string]any)
	strs := attrs["strings"].(map[string]any)
	if strs["other"] != "سلام" {
		t.Errorf("strings.other = %v", strs["other"])
	}
}

func TestMarkReviewed(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/vnd.api+json")
			fmt.Fprint(w, `{"data":[{"id":"o:acme:p:website:r:frontend:s:abc123"}]}`)
		case r.Method == http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patched)
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.MarkReviewed(context.Background(), "frontend", "fa", "greeting"); err != nil {
		t.Fatalf("error: %v", err)
	}

	attrs := patched["data"].(map[string]any)["attributes"].(map[string]any)
	if attrs["reviewed"] != true {
		t.Errorf("reviewed = %v", attrs["reviewed"])
	}
}

func TestUpdateTranslation_UnknownKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.api+json")
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	err := c.UpdateTranslation(context.Background(), "frontend", "fa", "no.such.key", "x")
	if err == nil || !strings.Contains(err.Error(), "no resource string found") {
		t.Errorf("err = %v, want key lookup failure", err)
	}
}

// ---------------------------------------------------------------------------
// Async downloads
// ---------------------------------------------------------------------------

func TestWaitDownload(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			data := body["data"].(map[string]any)
			if data["type"] != "resource_translations_async_downloads" {
				t.Errorf("type = %v", data["type"])
			}
			w.Header().Set("Content-Type", "application/vnd.api+json")
			fmt.Fprint(w, `{"data":{"id":"job42"}}`)

		case r.Method == http.MethodGet:
			if r.URL.Path != "/resource_translations_async_downloads/job42" {
				t.Errorf("path = %q", r.URL.Path)
			}
			polls++
			if polls == 1 {
				w.Header().Set("Content-Type", "application/vnd.api+json")
				fmt.Fprint(w, `{"data":{"attributes":{"status":"processing"}}}`)
				return
			}
			w.Header().Set("Content-Type", "text/x-po; charset=utf-8")
			fmt.Fprint(w, "msgid \"Hello\"\nmsgstr \"سلام\"\n")
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	job, err := c.CreateDownloadJob(context.Background(), "frontend", "fa")
	if err != nil {
		t.Fatalf("CreateDownloadJob: %v", err)
	}
	if job.ID != "job42" {
		t.Errorf("job.ID = %q", job.ID)
	}

	outputPath := filepath.Join(t.TempDir(), "locale", "fa", "django.po")
	if err := c.WaitDownload(context.Background(), job, outputPath, 10*time.Millisecond, 5); err != nil {
		t.Fatalf("WaitDownload: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(content), `msgid "Hello"`) {
		t.Errorf("content = %q", content)
	}
	if polls != 2 {
		t.Errorf("got %d polls, want 2", polls)
	}
}

func TestWaitDownload_JobFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.api+json")
		fmt.Fprint(w, `{"data":{"attributes":{"status":"failed"}}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	err := c.WaitDownload(context.Background(), &DownloadJob{ID: "bad"}, filepath.Join(t.TempDir(), "x.po"), 10*time.Millisecond, 3)
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Errorf("err = %v, want job failure", err)
	}
}

func TestWaitDownload_JSONFileWithoutEnvelope(t *testing.T) {
	// A JSON translation file comes back with a JSON content type but no
	// JSON:API status document; it must be treated as the delivered file.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"greeting":"سلام"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	outputPath := filepath.Join(t.TempDir(), "fa.json")
	if err := c.WaitDownload(context.Background(), &DownloadJob{ID: "j"}, outputPath, 10*time.Millisecond, 3); err != nil {
		t.Fatalf("error: %v", err)
	}
	content, _ := os.ReadFile(outputPath)
	if string(content) != `{"greeting":"سلام"}` {
		t.Errorf("content = %q", content)
	}
}

func TestWaitDownload_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.api+json")
		fmt.Fprint(w, `{"data":{"attributes":{"status":"processing"}}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	err := c.WaitDownload(context.Background(), &DownloadJob{ID: "slow"}, filepath.Join(t.TempDir(), "x.po"), time.Millisecond, 2)
	if err == nil || !strings.Contains(err.Error(), "did not complete") {
		t.Errorf("err = %v, want poll exhaustion", err)
	}
}
