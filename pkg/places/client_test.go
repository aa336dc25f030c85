package places

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearbySearch_FollowsPageTokens(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pagetoken")
		tokens = append(tokens, token)
		switch token {
		case "":
			fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"p1","name":"Acme Cafe"}],"next_page_token":"tok2"}`)
		case "tok2":
			fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"p2","name":"Beta Bar"}]}`)
		default:
			t.Errorf("unexpected page token %q", token)
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPageTokenDelay(time.Millisecond))
	got, err := c.NearbySearch(context.Background(), 51.5, -0.12, 5000, "cafe")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].PlaceID)
	assert.Equal(t, "p2", got[1].PlaceID)
	assert.Equal(t, []string{"", "tok2"}, tokens)
}

func TestNearbySearch_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.NearbySearch(context.Background(), 51.5, -0.12, 5000, "cafe")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearbySearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OVER_QUERY_LIMIT","results":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.NearbySearch(context.Background(), 51.5, -0.12, 5000, "cafe")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "OVER_QUERY_LIMIT", se.Status)
}

func TestTextSearch_SendsQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"p1","name":"Grand Hotel"}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.TextSearch(context.Background(), "Hotel in North of London, United Kingdom")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Hotel in North of London, United Kingdom", query)
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))
		assert.Contains(t, r.URL.Query().Get("fields"), "address_components")
		fmt.Fprint(w, `{"status":"OK","result":{
			"name":"Acme Cafe",
			"formatted_address":"12 High Street, London, United Kingdom",
			"website":"https://acme.example",
			"formatted_phone_number":"+44 20 7946 0000",
			"geometry":{"location":{"lat":51.5,"lng":-0.12}},
			"address_components":[{"long_name":"London","short_name":"London","types":["locality","political"]}]
		}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	d, err := c.Details(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", d.PlaceID)
	assert.Equal(t, "Acme Cafe", d.Name)
	assert.Equal(t, "https://acme.example", d.Website)
	assert.Equal(t, 51.5, d.Geometry.Location.Lat)
	require.Len(t, d.AddressComponents, 1)
	assert.Contains(t, d.AddressComponents[0].Types, "locality")
}

func TestDetails_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"NOT_FOUND"}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Details(context.Background(), "gone")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "NOT_FOUND", se.Status)
}

func TestNearbySearch_ContextCancelledDuringPageWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","results":[],"next_page_token":"tok2"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPageTokenDelay(time.Minute))
	_, err := c.NearbySearch(ctx, 51.5, -0.12, 5000, "cafe")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
