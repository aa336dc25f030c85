package model

// RawPlace is one candidate business returned by the place search
// provider, tagged with the category keyword that produced it (the
// provider does not return the category itself).
type RawPlace struct {
	PlaceID  string  `json:"place_id"`
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Category string  `json:"category,omitempty"`
}
