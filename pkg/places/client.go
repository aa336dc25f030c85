// Package places provides a client for the Google Places nearby search,
// text search, and place details APIs.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the place search and details operations.
type Client interface {
	// NearbySearch returns all places for one point/radius/keyword query,
	// following continuation pages until the provider stops issuing tokens.
	NearbySearch(ctx context.Context, lat, lng float64, radius int, keyword string) ([]Place, error)
	// TextSearch returns all places for a free-text query, with the same
	// pagination behavior as NearbySearch.
	TextSearch(ctx context.Context, query string) ([]Place, error)
	// Details fetches the full contact/address record for one place.
	Details(ctx context.Context, placeID string) (*Details, error)
}

// Place is one search result.
type Place struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity,omitempty"`
	Geometry Geometry `json:"geometry"`
}

// Geometry holds the provider's location for a place.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AddressComponent is one structured address part from the details endpoint.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Details is the full record returned by the place details endpoint.
type Details struct {
	PlaceID           string             `json:"place_id"`
	Name              string             `json:"name"`
	FormattedAddress  string             `json:"formatted_address"`
	Vicinity          string             `json:"vicinity"`
	Website           string             `json:"website"`
	Phone             string             `json:"formatted_phone_number"`
	Geometry          Geometry           `json:"geometry"`
	AddressComponents []AddressComponent `json:"address_components"`
}

// StatusError is returned when the provider answers with an explicit
// error status (anything other than OK or ZERO_RESULTS). Callers use it
// to distinguish a fatal provider condition (e.g. OVER_QUERY_LIMIT)
// from an ordinary network failure.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("places: provider status %s", e.Status)
}

type searchResponse struct {
	Status        string  `json:"status"`
	Results       []Place `json:"results"`
	NextPageToken string  `json:"next_page_token"`
	ErrorMessage  string  `json:"error_message"`
}

type detailsResponse struct {
	Status string  `json:"status"`
	Result Details `json:"result"`
}

// Option configures the places client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageTokenDelay overrides the wait before a continuation-page
// request. The provider rejects a next_page_token used too early, so
// shortening this below ~2s is only safe in tests.
func WithPageTokenDelay(d time.Duration) Option {
	return func(c *httpClient) {
		c.pageTokenDelay = d
	}
}

type httpClient struct {
	apiKey         string
	baseURL        string
	pageTokenDelay time.Duration
	http           *http.Client
}

// NewClient creates a Google Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:         apiKey,
		baseURL:        "https://maps.googleapis.com/maps/api/place",
		pageTokenDelay: 2 * time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) NearbySearch(ctx context.Context, lat, lng float64, radius int, keyword string) ([]Place, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("radius", fmt.Sprintf("%d", radius))
	q.Set("keyword", keyword)
	q.Set("key", c.apiKey)
	return c.paginatedSearch(ctx, c.baseURL+"/nearbysearch/json", q)
}

func (c *httpClient) TextSearch(ctx context.Context, query string) ([]Place, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("key", c.apiKey)
	return c.paginatedSearch(ctx, c.baseURL+"/textsearch/json", q)
}

// paginatedSearch issues the initial query and follows next_page_token
// continuations, waiting pageTokenDelay before each continuation because
// tokens are not valid immediately.
func (c *httpClient) paginatedSearch(ctx context.Context, endpoint string, q url.Values) ([]Place, error) {
	var all []Place
	pageToken := ""

	for {
		if pageToken != "" {
			q.Set("pagetoken", pageToken)
			timer := time.NewTimer(c.pageTokenDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := c.search(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}

		if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
			return nil, &StatusError{Status: resp.Status}
		}

		all = append(all, resp.Results...)
		if resp.NextPageToken == "" {
			return all, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *httpClient) search(ctx context.Context, endpoint string, q url.Values) (*searchResponse, error) {
	body, err := c.get(ctx, endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal search response")
	}
	return &resp, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Details, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "place_id,name,formatted_address,vicinity,formatted_phone_number,website,geometry,address_components")
	q.Set("language", "en")
	q.Set("key", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"/details/json?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal details response")
	}
	if resp.Status != "OK" {
		return nil, &StatusError{Status: resp.Status}
	}

	resp.Result.PlaceID = placeID
	return &resp.Result, nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
