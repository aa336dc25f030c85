// Package snov provides a client for the Snov.io domain email API,
// which uses an OAuth client-credentials flow.
package snov

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Snov.io operations used by the enrichment waterfall.
type Client interface {
	// DomainEmails returns the email addresses indexed for a domain.
	DomainEmails(ctx context.Context, domain string) ([]string, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type domainEmailsResponse struct {
	Emails []struct {
		Email string `json:"email"`
	} `json:"emails"`
}

// Option configures the Snov client.
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
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Snov.io client with the given OAuth credentials.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://api.snov.io",
		http:         &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// token returns a cached access token, fetching a fresh one via the
// client-credentials grant when the cache is empty or near expiry.
func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return "", eris.Wrap(err, "snov: marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "snov: create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "snov: token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "snov: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("snov: token status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", eris.Wrap(err, "snov: unmarshal token response")
	}
	if tr.AccessToken == "" {
		return "", eris.New("snov: no access token in response")
	}

	c.accessToken = tr.AccessToken
	// Refresh a minute early so a token never expires mid-request.
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *httpClient) DomainEmails(ctx context.Context, domain string) ([]string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("access_token", token)
	q.Set("domain", domain)
	q.Set("type", "all")
	q.Set("limit", "1")
	q.Set("lastId", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/domain-emails-with-info?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "snov: create domain emails request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "snov: domain emails request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "snov: read domain emails response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("snov: domain emails status %d: %s", resp.StatusCode, string(body))
	}

	var der domainEmailsResponse
	if err := json.Unmarshal(body, &der); err != nil {
		return nil, eris.Wrap(err, "snov: unmarshal domain emails response")
	}

	emails := make([]string, 0, len(der.Emails))
	for _, e := range der.Emails {
		emails = append(emails, e.Email)
	}
	return emails, nil
}
