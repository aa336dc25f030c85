// Package geosearch implements the spatial search engine: multi-point
// place discovery around a geographic anchor, with deduplication of the
// overlapping sub-query results.
package geosearch

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/pkg/places"
)

// ProgressFunc is invoked after each search point is fully processed.
// It is synchronous; the caller decides whether to persist the update.
type ProgressFunc func(done, total int, message string)

// Engine discovers candidate places by querying the place search
// provider from multiple vantage points, working around the provider's
// per-query result ceiling.
type Engine struct {
	places  places.Client
	mapping TypeMapping
	limiter *rate.Limiter
}

// NewEngine creates a spatial search engine. The limiter paces every
// provider call to stay under the provider's rate limits.
func NewEngine(client places.Client, mapping TypeMapping, limiter *rate.Limiter) *Engine {
	if limiter == nil {
		limiter = rate.NewLimiter(2, 1)
	}
	if mapping == nil {
		mapping = DefaultTypeMapping()
	}
	return &Engine{places: client, mapping: mapping, limiter: limiter}
}

// SearchCoordinates runs the 9-point nearby-search strategy around a
// center point and returns the deduplicated candidates, each tagged
// with the category keyword that produced it.
//
// A sub-query that fails with a network error is logged and skipped; an
// explicit provider error status (anything besides OK / no results)
// aborts the search so the caller can mark the parent job failed.
func (e *Engine) SearchCoordinates(ctx context.Context, center Point, radius int, categories []string, progress ProgressFunc) ([]model.RawPlace, error) {
	if radius <= 0 {
		return nil, eris.Errorf("geosearch: radius must be positive, got %d", radius)
	}
	if len(categories) == 0 {
		return nil, eris.New("geosearch: at least one category is required")
	}

	log := zap.L().With(zap.String("component", "geosearch.engine"))
	areas := SearchAreas(center, radius)

	var all []model.RawPlace
	for i, na := range areas {
		for _, category := range categories {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "geosearch: rate limiter")
			}

			keyword := e.mapping.Keyword(category)
			results, err := e.places.NearbySearch(ctx, na.Area.Point.Lat, na.Area.Point.Lng, na.Area.Radius, keyword)
			if err != nil {
				var se *places.StatusError
				if errors.As(err, &se) {
					return nil, eris.Wrapf(err, "geosearch: provider rejected query at %s point", na.Name)
				}
				log.Warn("sub-query failed, skipping",
					zap.String("point", na.Name),
					zap.String("category", category),
					zap.Error(err),
				)
				continue
			}

			all = append(all, tagged(results, category)...)
		}

		if progress != nil {
			progress(i+1, len(areas), "Searched "+na.Name+" point")
		}
	}

	unique := Dedupe(all)
	log.Info("coordinate search complete",
		zap.Int("raw", len(all)),
		zap.Int("unique", len(unique)),
	)
	return unique, nil
}

// SearchCity runs the 9-directional text-search strategy for a city,
// delegating geographic disambiguation to the provider's understanding
// of phrases like "North of {city}". Strictly less precise than
// coordinate mode; used when exact coordinates are unavailable.
func (e *Engine) SearchCity(ctx context.Context, city, country string, categories []string, progress ProgressFunc) ([]model.RawPlace, error) {
	if city == "" {
		return nil, eris.New("geosearch: city is required")
	}
	if len(categories) == 0 {
		return nil, eris.New("geosearch: at least one category is required")
	}

	log := zap.L().With(zap.String("component", "geosearch.engine"))
	dirs := CityDirections()

	var all []model.RawPlace
	for i, dir := range dirs {
		for _, category := range categories {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "geosearch: rate limiter")
			}

			query := DirectionalQuery(dir, city, country, category)
			results, err := e.places.TextSearch(ctx, query)
			if err != nil {
				var se *places.StatusError
				if errors.As(err, &se) {
					return nil, eris.Wrapf(err, "geosearch: provider rejected query %q", query)
				}
				log.Warn("sub-query failed, skipping",
					zap.String("direction", dir),
					zap.String("category", category),
					zap.Error(err),
				)
				continue
			}

			all = append(all, tagged(results, category)...)
		}

		if progress != nil {
			progress(i+1, len(dirs), "Searched "+dir+" of "+city)
		}
	}

	unique := Dedupe(all)
	log.Info("city search complete",
		zap.String("city", city),
		zap.Int("raw", len(all)),
		zap.Int("unique", len(unique)),
	)
	return unique, nil
}

// tagged attaches the originating category to each result. The provider
// does not return the category, and the dashboard needs one label per
// business.
func tagged(results []places.Place, category string) []model.RawPlace {
	out := make([]model.RawPlace, len(results))
	for i, p := range results {
		out[i] = model.RawPlace{
			PlaceID:  p.PlaceID,
			Name:     p.Name,
			Vicinity: p.Vicinity,
			Lat:      p.Geometry.Location.Lat,
			Lng:      p.Geometry.Location.Lng,
			Category: category,
		}
	}
	return out
}
