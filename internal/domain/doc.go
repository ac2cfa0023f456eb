// Package domain models the enrichment of free-text disaster reports.
//
// # Enrichments
//
// Two facts are derived for a report:
//
//	location      free text  →  place name  →  latitude/longitude
//	authenticity  image URL + disaster context  →  confidence score 0–100
//
// Both rely on remote services (a generative model, a geocoding API, the image
// host). Those collaborators are described here as small interfaces
// ([TextGenerator], [VisionGenerator], [Geocoder], [ImageFetcher]) so the
// enrichment core can be exercised with test doubles.
//
// # Outcomes
//
// Every enrichment returns a [Result] that records which path produced it:
//
//	ok        the remote computation ran (or a fresh cached copy was reused)
//	degraded  a deterministic fallback produced a usable value
//	failed    nothing usable could be produced; the caller maps this to an error
//
// # Authenticity
//
// [VerificationResult.IsAuthentic] is never set directly: [NewVerificationResult]
// derives it from the confidence score using [AuthenticityThreshold] (70).
// Unparsable scores default to [DefaultConfidenceScore] (50).
//
// # Cache Entries
//
// The cache store keeps JSON values keyed by a fingerprint string such as
// "geocode_Manhattan" or "verify_https://example.com/a.jpg". An entry whose
// ExpiresAt is not after the current time is a miss, whatever the backend.
package domain
