// Package hunter provides a client for the Hunter.io domain search and
// email verification APIs.
package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Hunter.io operations used by the enrichment waterfall.
type Client interface {
	// DomainSearch returns the first email indexed for a domain, or ""
	// when the domain has none.
	DomainSearch(ctx context.Context, domain string) (string, error)
	// Verify checks the deliverability of one address and returns the
	// provider's result label and 0-100 confidence score.
	Verify(ctx context.Context, email string) (*Verification, error)
}

// Verification is the outcome of an email deliverability check.
type Verification struct {
	Result string `json:"result"`
	Score  int    `json:"score"`
}

type domainSearchResponse struct {
	Data struct {
		Emails []struct {
			Value string `json:"value"`
		} `json:"emails"`
	} `json:"data"`
}

type verifyResponse struct {
	Data Verification `json:"data"`
}

// Option configures the Hunter client.
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Hunter.io client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.hunter.io/v2",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) DomainSearch(ctx context.Context, domain string) (string, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("api_key", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"/domain-search?"+q.Encode())
	if err != nil {
		return "", err
	}

	var resp domainSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "hunter: unmarshal domain search response")
	}

	if len(resp.Data.Emails) == 0 {
		return "", nil
	}
	return resp.Data.Emails[0].Value, nil
}

func (c *httpClient) Verify(ctx context.Context, email string) (*Verification, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"/email-verifier?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "hunter: unmarshal verify response")
	}
	return &resp.Data, nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("hunter: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
