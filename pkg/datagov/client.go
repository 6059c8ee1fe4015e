// Package datagov provides a client for the data.gov CKAN catalog, used to
// locate walkability extracts and their download URLs.
package datagov

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability/internal/resilience"
)

// Client defines the catalog operations.
type Client interface {
	// Search runs a CKAN package_search and returns up to rows packages.
	Search(ctx context.Context, query string, rows int) (*SearchResult, error)
}

// SearchResult is the result block of a package_search response.
type SearchResult struct {
	Count    int       `json:"count"`
	Packages []Package `json:"results"`
}

// Package is one catalog dataset.
type Package struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	Notes        string       `json:"notes"`
	Organization Organization `json:"organization"`
	Resources    []Resource   `json:"resources"`
}

// Organization publishes a package.
type Organization struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Resource is one downloadable file of a package.
type Resource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// CSVResources returns the resources that look importable: CSV, ZIP or XLSX.
func (p Package) CSVResources() []Resource {
	var out []Resource
	for _, r := range p.Resources {
		switch strings.ToLower(strings.TrimSpace(r.Format)) {
		case "csv", "zip", "xlsx":
			out = append(out, r)
		}
	}
	return out
}

type response struct {
	Success bool          `json:"success"`
	Result  *SearchResult `json:"result"`
	Error   *apiError     `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"__type"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a catalog client. apiKey may be empty; it is sent as
// the x-api-key header when set.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://catalog.data.gov",
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("datagov", "package_search")
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, rows int) (*SearchResult, error) {
	if rows <= 0 {
		rows = 10
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("rows", strconv.Itoa(rows))
	reqURL := c.baseURL + "/api/3/action/package_search?" + q.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "datagov: search request failed")
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "datagov: unmarshal search response")
	}
	if !resp.Success || resp.Result == nil {
		msg := "unknown error"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return nil, eris.Errorf("datagov: search failed: %s", msg)
	}
	return resp.Result, nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: read response body")
	}
	// CKAN reports query errors as 400/409 with a JSON error body.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict {
		return body, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError(resp.StatusCode, reqURL)
	}
	return body, nil
}
