// Package serpapi is a client for the SerpApi Google Maps search and
// Google Maps reviews engines.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-scout/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpApi Google Maps operations.
type Client interface {
	MapsSearch(ctx context.Context, req MapsSearchRequest) (*MapsSearchResponse, error)
	MapsReviews(ctx context.Context, req MapsReviewsRequest) (*MapsReviewsResponse, error)
}

// MapsSearchRequest is one page of a google_maps search.
type MapsSearchRequest struct {
	Query string
	Start int // result offset; 0 for the first page
}

// MapsSearchResponse is one page of local results. Entries are kept raw
// because their shape varies between result types.
type MapsSearchResponse struct {
	LocalResults []json.RawMessage `json:"local_results"`
	PlaceResults json.RawMessage   `json:"place_results,omitempty"`
	Pagination   Pagination        `json:"serpapi_pagination"`
}

// HasNext reports whether the provider advertised another page.
func (r *MapsSearchResponse) HasNext() bool {
	return r.Pagination.Next != ""
}

// MapsReviewsRequest is one page of a google_maps_reviews listing.
type MapsReviewsRequest struct {
	DataID        string
	NextPageToken string
}

// MapsReviewsResponse is one page of reviews for a place.
type MapsReviewsResponse struct {
	Reviews        []json.RawMessage `json:"reviews"`
	Pagination     Pagination        `json:"serpapi_pagination"`
	PlaceInfo      PlaceInfo         `json:"place_info"`
	SearchMetadata SearchMetadata    `json:"search_metadata"`
}

// PlaceURL returns the best known link to the place.
func (r *MapsReviewsResponse) PlaceURL() string {
	if r.PlaceInfo.Link != "" {
		return r.PlaceInfo.Link
	}
	return r.SearchMetadata.GoogleMapsURL
}

// Pagination carries the continuation fields of a response.
type Pagination struct {
	Next          string `json:"next,omitempty"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// PlaceInfo is the place summary attached to a reviews response.
type PlaceInfo struct {
	Title string `json:"title,omitempty"`
	Link  string `json:"link,omitempty"`
}

// SearchMetadata is the request metadata echoed by SerpApi.
type SearchMetadata struct {
	Status        string `json:"status,omitempty"`
	GoogleMapsURL string `json:"google_maps_url,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLocale sets the interface language (hl) and country (gl).
func WithLocale(hl, gl string) Option {
	return func(c *httpClient) {
		c.hl = hl
		c.gl = gl
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	hl, gl  string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("serpapi", "search.json")
	}
	return c
}

func (c *httpClient) MapsSearch(ctx context.Context, req MapsSearchRequest) (*MapsSearchResponse, error) {
	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", req.Query)
	if req.Start > 0 {
		params.Set("start", strconv.Itoa(req.Start))
	}

	var resp MapsSearchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	// A query that resolves to a single venue returns place_results instead.
	if len(resp.LocalResults) == 0 && len(resp.PlaceResults) > 0 && string(resp.PlaceResults) != "null" {
		resp.LocalResults = []json.RawMessage{resp.PlaceResults}
	}
	return &resp, nil
}

func (c *httpClient) MapsReviews(ctx context.Context, req MapsReviewsRequest) (*MapsReviewsResponse, error) {
	params := url.Values{}
	params.Set("engine", "google_maps_reviews")
	params.Set("data_id", req.DataID)
	params.Set("sort_by", "ratingLow")
	if req.NextPageToken != "" {
		params.Set("next_page_token", req.NextPageToken)
	}

	var resp MapsReviewsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// apiError is the body SerpApi returns for failed searches, sometimes with
// a 200 status.
type apiError struct {
	Error string `json:"error"`
}

const noResultsMessage = "hasn't returned any results"

func (c *httpClient) get(ctx context.Context, params url.Values, out any) error {
	if c.hl != "" {
		params.Set("hl", c.hl)
	}
	if c.gl != "" {
		params.Set("gl", c.gl)
	}
	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + "/search.json?" + params.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, reqURL)
	})
	if err != nil {
		return err
	}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		if strings.Contains(apiErr.Error, noResultsMessage) {
			return nil
		}
		return eris.Errorf("serpapi: GET %s: %s", RedactURL(reqURL), c.redact(apiErr.Error))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "serpapi: unmarshal response from %s", RedactURL(reqURL))
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "serpapi: create request %s", RedactURL(reqURL))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = RedactURL(ue.URL)
		}
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("serpapi: GET %s: unexpected status %d: %s",
			RedactURL(reqURL), resp.StatusCode, c.redact(truncate(string(body), 300)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return body, nil
}

func (c *httpClient) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, Redacted)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
