package geosearch

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/resilience"
	"github.com/geoleads/leadgen-cli/pkg/places"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	return cfg
}

func acmeDetails() *places.Details {
	return &places.Details{
		PlaceID:          "place-acme",
		Name:             "Acme Cafe",
		FormattedAddress: "12 High Street, London SW1A 1AA, UK",
		Vicinity:         "12 High Street, London",
		Website:          "https://acmecafe.example",
		Phone:            "+44 20 7946 0000",
		Geometry:         places.Geometry{Location: places.LatLng{Lat: 51.5012, Lng: -0.1419}},
		AddressComponents: []places.AddressComponent{
			{LongName: "12", Types: []string{"street_number"}},
			{LongName: "London", Types: []string{"locality", "political"}},
			{LongName: "United Kingdom", ShortName: "GB", Types: []string{"country", "political"}},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	mock := &mockPlaces{detailsFn: func(placeID string) (*places.Details, error) {
		return acmeDetails(), nil
	}}

	r := NewResolver(mock).WithNow(func() time.Time { return fixedNow }).WithRetry(fastRetry())
	lead, err := r.Resolve(context.Background(), "place-acme", "cafe", LeadMeta{CreatedBy: "ops@example.com", Currency: "GBP"})
	require.NoError(t, err)

	assert.Equal(t, ExternalID("place-acme"), lead.ExternalID)
	assert.Equal(t, "Acme Cafe", lead.Name)
	assert.Equal(t, "https://acmecafe.example", lead.Website)
	assert.Equal(t, "+44 20 7946 0000", lead.Phone)
	assert.Equal(t, "12 High Street, London", lead.Address)
	assert.Equal(t, "London", lead.City)
	assert.Equal(t, "United Kingdom", lead.Country)
	assert.Equal(t, "51.5012, -0.1419", lead.Location)
	assert.Equal(t, "Cafe", lead.BusinessType)
	assert.Equal(t, model.EmailStatusUnverified, lead.EmailStatus)
	assert.Equal(t, "ops@example.com", lead.CreatedBy)
	assert.Equal(t, "ops@example.com", lead.RecordOwner)
	assert.Equal(t, "GBP", lead.Currency)
	assert.Equal(t, "Google Maps API", lead.Source)
	assert.Equal(t, fixedNow, lead.CreatedAt)
	assert.Equal(t, fixedNow, lead.LastModified)
}

func TestResolver_Resolve_AddressFallsBackToFormatted(t *testing.T) {
	mock := &mockPlaces{detailsFn: func(placeID string) (*places.Details, error) {
		d := acmeDetails()
		d.Vicinity = ""
		return d, nil
	}}

	r := NewResolver(mock).WithRetry(fastRetry())
	lead, err := r.Resolve(context.Background(), "place-acme", "cafe", LeadMeta{})
	require.NoError(t, err)
	assert.Equal(t, "12 High Street, London SW1A 1AA, UK", lead.Address)
}

func TestResolver_Resolve_CityFromPostalTown(t *testing.T) {
	mock := &mockPlaces{detailsFn: func(placeID string) (*places.Details, error) {
		d := acmeDetails()
		d.AddressComponents = []places.AddressComponent{
			{LongName: "Croydon", Types: []string{"postal_town"}},
			{LongName: "United Kingdom", Types: []string{"country"}},
		}
		return d, nil
	}}

	r := NewResolver(mock).WithRetry(fastRetry())
	lead, err := r.Resolve(context.Background(), "p", "cafe", LeadMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Croydon", lead.City)
}

func TestResolver_Resolve_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	mock := &mockPlaces{detailsFn: func(placeID string) (*places.Details, error) {
		attempts++
		if attempts < 3 {
			return nil, resilience.NewTransientError(assert.AnError, 503)
		}
		return acmeDetails(), nil
	}}

	r := NewResolver(mock).WithRetry(fastRetry())
	lead, err := r.Resolve(context.Background(), "place-acme", "cafe", LeadMeta{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "Acme Cafe", lead.Name)
}

func TestResolver_Resolve_StatusErrorNotRetried(t *testing.T) {
	attempts := 0
	mock := &mockPlaces{detailsFn: func(placeID string) (*places.Details, error) {
		attempts++
		return nil, &places.StatusError{Status: "NOT_FOUND"}
	}}

	r := NewResolver(mock).WithRetry(fastRetry())
	_, err := r.Resolve(context.Background(), "missing", "cafe", LeadMeta{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestResolver_FromSearchResult(t *testing.T) {
	r := NewResolver(&mockPlaces{}).WithNow(func() time.Time { return fixedNow })

	lead := r.FromSearchResult(model.RawPlace{
		PlaceID:  "place-acme",
		Name:     "Acme Cafe",
		Vicinity: "12 High Street",
		Lat:      51.5,
		Lng:      -0.14,
		Category: "cafe",
	}, LeadMeta{CreatedBy: "ops@example.com", Currency: "GBP"})

	assert.Equal(t, ExternalID("place-acme"), lead.ExternalID)
	assert.Equal(t, "12 High Street", lead.Address)
	assert.Equal(t, "51.5, -0.14", lead.Location)
	assert.Equal(t, "Cafe", lead.BusinessType)
	assert.Equal(t, model.EmailStatusUnverified, lead.EmailStatus)
}

func TestExternalID(t *testing.T) {
	id := ExternalID("ChIJN1t_tDeuEmsRUsoyG83frY4")

	// Deterministic and prefixed.
	assert.Equal(t, id, ExternalID("ChIJN1t_tDeuEmsRUsoyG83frY4"))
	assert.Regexp(t, `^ID\d+$`, id)

	// Distinct inputs map to distinct identifiers.
	assert.NotEqual(t, id, ExternalID("ChIJsomewhere-else"))

	// Empty input still yields a well-formed identifier.
	assert.Equal(t, "ID0", ExternalID(""))
}

func TestAbsHash(t *testing.T) {
	assert.Equal(t, int64(7), absHash(-7))
	assert.Equal(t, int64(7), absHash(7))

	// The minimum int32 has no in-range positive counterpart; the
	// widened magnitude keeps the identifier positive.
	assert.Equal(t, int64(2147483648), absHash(math.MinInt32))
}
