package hunter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domain-search", r.URL.Path)
		assert.Equal(t, "acme.example", r.URL.Query().Get("domain"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"data":{"emails":[{"value":"info@acme.example"},{"value":"sales@acme.example"}]}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	email, err := c.DomainSearch(context.Background(), "acme.example")
	require.NoError(t, err)
	assert.Equal(t, "info@acme.example", email)
}

func TestDomainSearch_NoEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"emails":[]}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	email, err := c.DomainSearch(context.Background(), "empty.example")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email-verifier", r.URL.Path)
		assert.Equal(t, "info@acme.example", r.URL.Query().Get("email"))
		fmt.Fprint(w, `{"data":{"result":"deliverable","score":91}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	v, err := c.Verify(context.Background(), "info@acme.example")
	require.NoError(t, err)
	assert.Equal(t, "deliverable", v.Result)
	assert.Equal(t, 91, v.Score)
}

func TestVerify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Verify(context.Background(), "info@acme.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
