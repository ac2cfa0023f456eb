package enrich

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	extractKeyPrefix = "extract_"
	geocodeKeyPrefix = "geocode_"
	verifyKeyPrefix  = "verify_"
)

// ExtractKey is the cache key of the location extracted from text: a digest
// of the exact text, so any change in wording is a different entry.
func ExtractKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return extractKeyPrefix + hex.EncodeToString(sum[:])
}

// GeocodeKey is the cache key of a geocoded location name. The name is used
// verbatim: "Austin" and "austin" are distinct entries.
func GeocodeKey(locationName string) string {
	return geocodeKeyPrefix + locationName
}

// VerifyKeyFunc derives the cache key of an image verification.
type VerifyKeyFunc func(imageURL, disasterContext string) string

// VerifyKey keys a verification by image URL alone. Two requests for the same
// URL with different disaster contexts share one cached analysis.
func VerifyKey(imageURL, _ string) string {
	return verifyKeyPrefix + imageURL
}

// VerifyContextKey keys a verification by image URL and a digest of the
// disaster context, so each context gets its own analysis.
func VerifyContextKey(imageURL, disasterContext string) string {
	sum := sha256.Sum256([]byte(disasterContext))
	return verifyKeyPrefix + imageURL + "#" + hex.EncodeToString(sum[:8])
}
