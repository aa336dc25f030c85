package geosearch

import "github.com/geoleads/leadgen-cli/internal/model"

// Dedupe removes places sharing a place_id, keeping the first-seen
// representative. Search points and categories are visited in a fixed
// order, so the surviving category tag is deterministic. Idempotent.
func Dedupe(places []model.RawPlace) []model.RawPlace {
	seen := make(map[string]bool, len(places))
	out := make([]model.RawPlace, 0, len(places))
	for _, p := range places {
		if seen[p.PlaceID] {
			continue
		}
		seen[p.PlaceID] = true
		out = append(out, p)
	}
	return out
}
