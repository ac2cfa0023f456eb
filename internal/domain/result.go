package domain

// Outcome records which path produced an enrichment value.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Result wraps an enrichment value with the path that produced it.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	// Reason explains a degraded or failed outcome.
	Reason string
	// Cached is true when the value was served from the cache store.
	Cached bool
}

// OK wraps a value produced by the primary path.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeOK}
}

// Degraded wraps a fallback value together with the failure that triggered it.
func Degraded[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeDegraded, Reason: reason}
}

// Failed reports that no usable value could be produced.
func Failed[T any](reason string) Result[T] {
	return Result[T]{Outcome: OutcomeFailed, Reason: reason}
}

// Worse returns the more severe of two outcomes.
func Worse(a, b Outcome) Outcome {
	if severity(a) >= severity(b) {
		return a
	}
	return b
}

func severity(o Outcome) int {
	switch o {
	case OutcomeFailed:
		return 2
	case OutcomeDegraded:
		return 1
	default:
		return 0
	}
}
