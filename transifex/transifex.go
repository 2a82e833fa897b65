// Package transifex implements a client for the Transifex REST API
// (https://rest.api.transifex.com, JSON:API dialect).
//
// The client covers the slice of the API this tool needs: listing project
// resources, paging through resource translations filtered by translation or
// review state (with the source string joined in via the include parameter),
// pushing translations, marking translations reviewed, and asynchronous
// translation-file downloads.
package transifex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the production Transifex REST endpoint.
const DefaultBaseURL = "https://rest.api.transifex.com"

// Client talks to the Transifex REST API for one organization/project pair.
type Client struct {
	// Token is the Bearer API token.
	Token string
	// Organization is the organization slug.
	Organization string
	// Project is the project slug.
	Project string
	// BaseURL overrides DefaultBaseURL (used by tests).
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
}

// NewClient creates a Client. Token, organization, and project are required.
func NewClient(token, organization, project string) (*Client, error) {
	if token == "" || organization == "" || project == "" {
		return nil, fmt.Errorf("transifex client requires token, organization, and project")
	}
	return &Client{
		Token:        token,
		Organization: organization,
		Project:      project,
		BaseURL:      DefaultBaseURL,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// projectID returns the JSON:API project identifier o:<org>:p:<project>.
func (c *Client) projectID() string {
	return fmt.Sprintf("o:%s:p:%s", c.Organization, c.Project)
}

// resourceID normalizes a resource identifier to the full
// o:<org>:p:<project>:r:<slug> form. Bare slugs are expanded.
func (c *Client) resourceID(resource string) string {
	slug := resource
	if i := strings.LastIndex(resource, ":"); i >= 0 {
		slug = resource[i+1:]
	}
	return fmt.Sprintf("%s:r:%s", c.projectID(), slug)
}

// do performs one API request and decodes the JSON body into out (when out
// is non-nil). Non-2xx statuses become errors carrying the response body.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/vnd.api+json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, truncate(string(respBody), 500))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", rawURL, err)
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

// Resource is one translatable resource in the project.
type Resource struct {
	// ID is the full JSON:API identifier (o:...:p:...:r:slug).
	ID string
	// Name is the display name.
	Name string
	// Slug is the resource slug.
	Slug string
}

// Resources lists all resources in the project.
func (c *Client) Resources(ctx context.Context) ([]Resource, error) {
	q := url.Values{}
	q.Set("filter[project]", c.projectID())
	endpoint := c.baseURL() + "/resources?" + q.Encode()

	var resources []Resource
	for endpoint != "" {
		var page struct {
			Data []struct {
				ID         string `json:"id"`
				Attributes struct {
					Name string `json:"name"`
					Slug string `json:"slug"`
				} `json:"attributes"`
			} `json:"data"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("listing resources: %w", err)
		}
		for _, d := range page.Data {
			resources = append(resources, Resource{
				ID:   d.ID,
				Name: d.Attributes.Name,
				Slug: d.Attributes.Slug,
			})
		}
		endpoint = page.Links.Next
	}
	return resources, nil
}

// ---------------------------------------------------------------------------
// Resource translations (paged, with source string join)
// ---------------------------------------------------------------------------

// TranslationString is one string fetched from a resource, with the source
// text joined in from the included resource_strings records.
type TranslationString struct {
	// Key identifies the string within the resource.
	Key string
	// Source is the source-language text.
	Source string
	// Translation is the target-language text (empty when untranslated).
	Translation string
	// Context is the translator-facing context note.
	Context string
}

// translationsPage models one page of the resource_translations endpoint.
type translationsPage struct {
	Data []struct {
		Attributes struct {
			Strings map[string]string `json:"strings"`
		} `json:"attributes"`
		Relationships struct {
			ResourceString struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"resource_string"`
		} `json:"relationships"`
	} `json:"data"`
	Included []struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Key     string            `json:"key"`
			Context string            `json:"context"`
			Strings map[string]string `json:"strings"`
		} `json:"attributes"`
	} `json:"included"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// translations pages through resource_translations with extra filters.
func (c *Client) translations(ctx context.Context, resource, lang string, filters map[string]string) ([]TranslationString, error) {
	q := url.Values{}
	q.Set("filter[resource]", c.resourceID(resource))
	q.Set("filter[language]", "l:"+lang)
	q.Set("include", "resource_string")
	for k, v := range filters {
		q.Set(k, v)
	}
	endpoint := c.baseURL() + "/resource_translations?" + q.Encode()

	var strs []TranslationString
	for endpoint != "" {
		var page translationsPage
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("fetching translations: %w", err)
		}

		// Index the included source strings by ID.
		type sourceInfo struct {
			key, context, text string
		}
		sources := make(map[string]sourceInfo, len(page.Included))
		for _, inc := range page.Included {
			if inc.Type != "resource_strings" {
				continue
			}
			sources[inc.ID] = sourceInfo{
				key:     inc.Attributes.Key,
				context: inc.Attributes.Context,
				text:    inc.Attributes.Strings["other"],
			}
		}

		for _, d := range page.Data {
			src := sources[d.Relationships.ResourceString.Data.ID]
			if src.text == "" {
				continue
			}
			strs = append(strs, TranslationString{
				Key:         src.key,
				Source:      src.text,
				Translation: d.Attributes.Strings["other"],
				Context:     src.context,
			})
		}

		c.log("Fetched %d strings so far...", len(strs))
		endpoint = page.Links.Next
	}
	return strs, nil
}

// UntranslatedStrings fetches strings with no translation in lang.
func (c *Client) UntranslatedStrings(ctx context.Context, resource, lang string) ([]TranslationString, error) {
	return c.translations(ctx, resource, lang, map[string]string{"filter[translated]": "false"})
}

// UnreviewedStrings fetches translated but not yet reviewed strings in lang.
func (c *Client) UnreviewedStrings(ctx context.Context, resource, lang string) ([]TranslationString, error) {
	return c.translations(ctx, resource, lang, map[string]string{"filter[reviewed]": "false"})
}

// ---------------------------------------------------------------------------
// Updating translations / marking reviewed
// ---------------------------------------------------------------------------

// translationID resolves the JSON:API id of the translation record for a
// string key, via the resource_strings lookup. Format: <string id>:l:<lang>.
func (c *Client) translationID(ctx context.Context, resource, lang, key string) (string, error) {
	q := url.Values{}
	q.Set("filter[resource]", c.resourceID(resource))
	q.Set("filter[key]", key)
	endpoint := c.baseURL() + "/resource_strings?" + q.Encode()

	var page struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return "", fmt.Errorf("looking up string %q: %w", key, err)
	}
	if len(page.Data) == 0 {
		return "", fmt.Errorf("no resource string found for key %q", key)
	}
	return fmt.Sprintf("%s:l:%s", page.Data[0].ID, lang), nil
}

// patchTranslation PATCHes the translation record with the given attributes.
func (c *Client) patchTranslation(ctx context.Context, resource, lang, key string, attributes map[string]any) error {
	id, err := c.translationID(ctx, resource, lang, key)
	if err != nil {
		return err
	}

	body := map[string]any{
		"data": map[string]any{
			"type":       "resource_translations",
			"id":         id,
			"attributes": attributes,
		},
	}
	endpoint := c.baseURL() + "/resource_translations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("updating translation for key %q: %w", key, err)
	}
	return nil
}

// UpdateTranslation sets the target-language text for a string key.
func (c *Client) UpdateTranslation(ctx context.Context, resource, lang, key, translation string) error {
	return c.patchTranslation(ctx, resource, lang, key, map[string]any{
		"strings": map[string]string{"other": translation},
	})
}

// MarkReviewed flags the translation for a string key as reviewed.
func (c *Client) MarkReviewed(ctx context.Context, resource, lang, key string) error {
	return c.patchTranslation(ctx, resource, lang, key, map[string]any{
		"reviewed": true,
	})
}

// ---------------------------------------------------------------------------
// Asynchronous file downloads
// ---------------------------------------------------------------------------

// DownloadJob tracks one asynchronous translation-file download.
type DownloadJob struct {
	// ID is the job identifier returned by the API.
	ID string
}

// CreateDownloadJob asks Transifex to render the translation file for a
// resource and language. The file is retrieved later with WaitDownload.
func (c *Client) CreateDownloadJob(ctx context.Context, resource, lang string) (*DownloadJob, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "resource_translations_async_downloads",
			"attributes": map[string]any{
				"content_encoding": "text",
				"file_type":        "default",
			},
			"relationships": map[string]any{
				"language": map[string]any{
					"data": map[string]any{"type": "languages", "id": "l:" + lang},
				},
				"resource": map[string]any{
					"data": map[string]any{"type": "resources", "id": c.resourceID(resource)},
				},
			},
		},
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	endpoint := c.baseURL() + "/resource_translations_async_downloads"
	if err := c.do(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return nil, fmt.Errorf("creating download job: %w", err)
	}
	return &DownloadJob{ID: out.Data.ID}, nil
}

// jobStatus is the polled state of a download job.
type jobStatus string

const (
	jobProcessing jobStatus = "processing"
	jobCompleted  jobStatus = "completed"
	jobFailed     jobStatus = "failed"
)

// WaitDownload polls a download job until the rendered file is delivered,
// then writes it to outputPath. The endpoint either redirects to the file
// content directly (non-JSON body) or reports a status document while the
// render is still in progress.
func (c *Client) WaitDownload(ctx context.Context, job *DownloadJob, outputPath string, pollInterval time.Duration, maxPolls int) error {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 30
	}

	endpoint := c.baseURL() + "/resource_translations_async_downloads/" + url.PathEscape(job.ID)

	for poll := 0; poll < maxPolls; poll++ {
		status, content, err := c.checkDownload(ctx, endpoint)
		if err != nil {
			return err
		}

		switch status {
		case jobCompleted:
			if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			if err := os.WriteFile(outputPath, content, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outputPath, err)
			}
			c.log("Saved file: %s (%d bytes)", outputPath, len(content))
			return nil
		case jobFailed:
			return fmt.Errorf("download job %s failed", job.ID)
		default:
			c.log("Job %s still processing...", job.ID)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}

	return fmt.Errorf("download job %s did not complete after %d polls", job.ID, maxPolls)
}

// checkDownload performs one poll. A JSON:API body reports job status; any
// other body is the rendered file itself.
func (c *Client) checkDownload(ctx context.Context, endpoint string) (jobStatus, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("polling download: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("polling download: status %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}

	if contentType == "application/vnd.api+json" || contentType == "application/json" {
		var doc struct {
			Data struct {
				Attributes struct {
					Status string `json:"status"`
				} `json:"attributes"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &doc); err == nil && doc.Data.Attributes.Status != "" {
			return jobStatus(doc.Data.Attributes.Status), nil, nil
		}
		// JSON translation file delivered without a status envelope.
		return jobCompleted, body, nil
	}

	return jobCompleted, body, nil
}
