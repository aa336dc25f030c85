// Package scraperfn provides a client for the deployed email-scraper
// function, which crawls a business website for contact addresses.
package scraperfn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the scraper function operations.
type Client interface {
	// Scrape crawls the target website and returns the first email found,
	// or "" when the scraper came up empty.
	Scrape(ctx context.Context, website, businessName string) (string, error)
}

// The function answers in one of two shapes: a single email field or an
// emails array. Deployments behind an API gateway additionally wrap the
// payload in an envelope whose body is a JSON string.
type scrapeResponse struct {
	Email  string   `json:"email"`
	Emails []string `json:"emails"`
	Body   string   `json:"body"`
}

// Option configures the scraper client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	endpoint  string
	authToken string
	http      *http.Client
}

// NewClient creates a scraper function client for the given endpoint.
func NewClient(endpoint, authToken string, opts ...Option) Client {
	c := &httpClient{
		endpoint:  endpoint,
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, website, businessName string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"website":      website,
		"businessName": businessName,
	})
	if err != nil {
		return "", eris.Wrap(err, "scraperfn: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "scraperfn: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "scraperfn: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "scraperfn: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("scraperfn: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var sr scrapeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", eris.Wrap(err, "scraperfn: unmarshal response")
	}

	// Unwrap the API-gateway envelope when present.
	if sr.Body != "" && sr.Email == "" && len(sr.Emails) == 0 {
		var inner scrapeResponse
		if err := json.Unmarshal([]byte(sr.Body), &inner); err == nil {
			sr = inner
		}
	}

	if sr.Email != "" {
		return sr.Email, nil
	}
	if len(sr.Emails) > 0 {
		return sr.Emails[0], nil
	}
	return "", nil
}
