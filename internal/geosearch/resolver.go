package geosearch

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/resilience"
	"github.com/geoleads/leadgen-cli/pkg/places"
)

// LeadMeta carries the search-context fields stamped onto every lead a
// resolver produces.
type LeadMeta struct {
	CreatedBy string
	Currency  string
}

// Resolver fetches full place details and normalizes them into the
// persisted lead shape.
type Resolver struct {
	places places.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewResolver creates a place detail resolver.
func NewResolver(client places.Client) *Resolver {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("places", "details")
	return &Resolver{
		places: client,
		retry:  cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// WithRetry overrides the detail lookup retry policy.
func (r *Resolver) WithRetry(cfg resilience.RetryConfig) *Resolver {
	r.retry = cfg
	return r
}

var titleCaser = cases.Title(language.English)

// Resolve fetches details for one place identifier and builds a lead.
// The external ID is a deterministic function of the place identifier,
// so re-resolving the same place never creates a duplicate row.
func (r *Resolver) Resolve(ctx context.Context, placeID, category string, meta LeadMeta) (*model.Lead, error) {
	details, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*places.Details, error) {
		return r.places.Details(ctx, placeID)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "geosearch: resolve place %s", placeID)
	}

	address := details.Vicinity
	if address == "" {
		address = details.FormattedAddress
	}

	now := r.now()
	lead := &model.Lead{
		ExternalID:   ExternalID(placeID),
		Name:         details.Name,
		Website:      details.Website,
		Phone:        details.Phone,
		EmailStatus:  model.EmailStatusUnverified,
		Address:      address,
		City:         componentByTypes(details.AddressComponents, "locality", "postal_town", "administrative_area_level_2", "administrative_area_level_3"),
		Country:      componentByTypes(details.AddressComponents, "country"),
		Location:     fmt.Sprintf("%v, %v", details.Geometry.Location.Lat, details.Geometry.Location.Lng),
		BusinessType: titleCaser.String(category),
		CreatedBy:    meta.CreatedBy,
		RecordOwner:  meta.CreatedBy,
		Currency:     meta.Currency,
		Source:       "Google Maps API",
		CreatedAt:    now,
		LastModified: now,
	}
	return lead, nil
}

// FromSearchResult builds a lead from the fields a search response
// already carries, used when the detail lookup fails so the place is
// not lost entirely.
func (r *Resolver) FromSearchResult(place model.RawPlace, meta LeadMeta) *model.Lead {
	now := r.now()
	return &model.Lead{
		ExternalID:   ExternalID(place.PlaceID),
		Name:         place.Name,
		EmailStatus:  model.EmailStatusUnverified,
		Address:      place.Vicinity,
		Location:     fmt.Sprintf("%v, %v", place.Lat, place.Lng),
		BusinessType: titleCaser.String(place.Category),
		CreatedBy:    meta.CreatedBy,
		RecordOwner:  meta.CreatedBy,
		Currency:     meta.Currency,
		Source:       "Google Maps API",
		CreatedAt:    now,
		LastModified: now,
	}
}

// ExternalID derives a stable identifier from a place identifier using
// a 32-bit rolling hash, matching the IDs already present in the lead
// table so re-runs upsert instead of duplicating.
func ExternalID(placeID string) string {
	var h int32
	for _, c := range placeID {
		h = h<<5 - h + int32(c)
	}
	return fmt.Sprintf("ID%d", absHash(h))
}

// absHash widens before negating so the minimum int32 hash maps to its
// positive magnitude instead of overflowing back to itself.
func absHash(h int32) int64 {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// componentByTypes returns the long name of the first address component
// carrying any of the given type tags. Which tag identifies the city is
// provider-dependent, so several are accepted in priority order of the
// component list.
func componentByTypes(components []places.AddressComponent, wanted ...string) string {
	for _, c := range components {
		for _, t := range c.Types {
			for _, w := range wanted {
				if t == w {
					return c.LongName
				}
			}
		}
	}
	return ""
}
