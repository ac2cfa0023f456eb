package domain

import "time"

const (
	// AuthenticityThreshold is the lowest confidence score considered authentic.
	AuthenticityThreshold = 70
	// DefaultConfidenceScore is used when no score can be read from the analysis.
	DefaultConfidenceScore = 50

	// UnavailableAnalysis is the analysis text of the degraded verification result.
	UnavailableAnalysis = "Image verification service is currently unavailable. Please verify the image manually."
)

// timestampLayout matches the millisecond ISO-8601 form clients already parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// VerificationResult is the authenticity assessment of an image.
type VerificationResult struct {
	Analysis        string `json:"analysis"`
	ConfidenceScore int    `json:"confidenceScore"`
	IsAuthentic     bool   `json:"isAuthentic"`
	Timestamp       string `json:"timestamp"`
	// Fallback is set only on the degraded result, when the model never ran.
	Fallback bool `json:"fallback,omitempty"`
}

// NewVerificationResult builds a result from a model analysis. The score is
// clamped to [0,100] and IsAuthentic is derived from it.
func NewVerificationResult(analysis string, score int, at time.Time) VerificationResult {
	score = clampScore(score)
	return VerificationResult{
		Analysis:        analysis,
		ConfidenceScore: score,
		IsAuthentic:     score >= AuthenticityThreshold,
		Timestamp:       at.UTC().Format(timestampLayout),
	}
}

// UnavailableVerification is the fixed degraded result returned when the image
// could not be downloaded or analysed.
func UnavailableVerification(at time.Time) VerificationResult {
	r := NewVerificationResult(UnavailableAnalysis, DefaultConfidenceScore, at)
	r.Fallback = true
	return r
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
