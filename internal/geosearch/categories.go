package geosearch

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TypeMapping translates dashboard category labels into the keyword the
// place search provider understands. Categories without a mapping fall
// back to their lowercased label.
type TypeMapping map[string]string

// defaultTypeMapping covers the categories the dashboard offers out of
// the box.
var defaultTypeMapping = TypeMapping{
	"Hotel":        "lodging",
	"Aparthotel":   "lodging",
	"Restaurant":   "restaurant",
	"Bar":          "bar",
	"Cafe":         "cafe",
	"Hospital":     "hospital",
	"Pharmacy":     "pharmacy",
	"Gym":          "gym",
	"Beauty Salon": "beauty_salon",
	"Spa":          "spa",
}

// DefaultTypeMapping returns a copy of the built-in category mapping.
func DefaultTypeMapping() TypeMapping {
	m := make(TypeMapping, len(defaultTypeMapping))
	for k, v := range defaultTypeMapping {
		m[k] = v
	}
	return m
}

// LoadTypeMapping reads a category mapping YAML file and merges it over
// the built-in defaults. An empty path returns the defaults unchanged.
func LoadTypeMapping(path string) (TypeMapping, error) {
	m := DefaultTypeMapping()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geosearch: read category mapping %s", path)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "geosearch: parse category mapping %s", path)
	}

	for k, v := range overrides {
		m[k] = v
	}
	return m, nil
}

// Keyword resolves a category label to the provider search keyword.
func (m TypeMapping) Keyword(category string) string {
	if kw, ok := m[category]; ok {
		return kw
	}
	return strings.ToLower(category)
}
