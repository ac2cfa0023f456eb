package domain

// UnknownLocation is the place name reported when no location can be extracted.
const UnknownLocation = "Unknown Location"

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCoordinates is the point returned when neither the geocoder nor the
// fallback table can place a location (New York City).
var DefaultCoordinates = Coordinates{Lat: 40.7128, Lng: -74.0060}

// LocationResult is the output of location processing. Coordinates are always
// populated, even when every remote dependency failed.
type LocationResult struct {
	LocationName string      `json:"location_name"`
	Coordinates  Coordinates `json:"coordinates"`
}
