package geosearch

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const earthRadiusKm = 6371

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lng float64
}

// Area is a point plus a radius in meters, the unit of work for one
// spatial sub-query.
type Area struct {
	Point  Point
	Radius int
}

// NamedArea pairs an area with its human-readable direction name, used
// for progress reporting.
type NamedArea struct {
	Name string
	Area Area
}

// directions lists the 8 offset points in the fixed visiting order.
// Center is always first, so first-seen-wins deduplication keeps the
// center's category tag deterministically.
var directions = []string{
	"north", "south", "east", "west",
	"northeast", "southeast", "northwest", "southwest",
}

// SearchAreas computes the 9 sub-query areas for a center and radius:
// the center at the full radius, and the 8 compass offsets at half the
// radius, displaced by half the radius. Offsets use an equirectangular
// approximation (longitude scaled by cos(lat)), which is adequate at
// the few-kilometer scales this engine operates on.
func SearchAreas(center Point, radius int) []NamedArea {
	distanceKm := float64(radius) / 2 / 1000
	latRad := center.Lat * math.Pi / 180

	latDelta := distanceKm / earthRadiusKm * 180 / math.Pi
	lngDelta := latDelta / math.Cos(latRad)

	north := round6(center.Lat + latDelta)
	south := round6(center.Lat - latDelta)
	east := round6(center.Lng + lngDelta)
	west := round6(center.Lng - lngDelta)

	half := radius / 2
	points := map[string]Point{
		"north":     {Lat: north, Lng: center.Lng},
		"south":     {Lat: south, Lng: center.Lng},
		"east":      {Lat: center.Lat, Lng: east},
		"west":      {Lat: center.Lat, Lng: west},
		"northeast": {Lat: north, Lng: east},
		"southeast": {Lat: south, Lng: east},
		"northwest": {Lat: north, Lng: west},
		"southwest": {Lat: south, Lng: west},
	}

	areas := make([]NamedArea, 0, 1+len(directions))
	areas = append(areas, NamedArea{Name: "center", Area: Area{Point: center, Radius: radius}})
	for _, name := range directions {
		areas = append(areas, NamedArea{Name: name, Area: Area{Point: points[name], Radius: half}})
	}
	return areas
}

// cityPhrases maps direction names to the natural-language location
// phrases used in city mode, where geographic disambiguation is
// delegated to the provider's query understanding.
var cityPhrases = []struct {
	Name   string
	Phrase string
}{
	{"center", "Center of %s"},
	{"north", "North of %s"},
	{"south", "South of %s"},
	{"east", "East of %s"},
	{"west", "West of %s"},
	{"northeast", "North East of %s"},
	{"southeast", "South East of %s"},
	{"northwest", "North West of %s"},
	{"southwest", "South West of %s"},
}

// DirectionalQuery builds the text-search query for one direction of a
// city search, e.g. "restaurant in North of London, United Kingdom".
func DirectionalQuery(direction, city, country, category string) string {
	for _, p := range cityPhrases {
		if p.Name == direction {
			return fmt.Sprintf("%s in %s, %s", category, fmt.Sprintf(p.Phrase, city), country)
		}
	}
	return fmt.Sprintf("%s in %s, %s", category, city, country)
}

// CityDirections returns the direction names in visiting order.
func CityDirections() []string {
	names := make([]string, len(cityPhrases))
	for i, p := range cityPhrases {
		names[i] = p.Name
	}
	return names
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ParsePoint parses a "lat, lng" string, the form coordinates are
// stored in on leads and search jobs.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, eris.Errorf("geosearch: invalid coordinates %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, eris.Wrapf(err, "geosearch: invalid latitude in %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, eris.Wrapf(err, "geosearch: invalid longitude in %q", s)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, eris.Errorf("geosearch: coordinates out of range %q", s)
	}
	return Point{Lat: lat, Lng: lng}, nil
}
