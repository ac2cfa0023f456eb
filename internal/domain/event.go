package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types published after an enrichment completes.
const (
	EventLocationResolved = "location_resolved"
	EventImageVerified    = "image_verified"
)

// EnrichmentEvent notifies subscribers that an enrichment produced a result.
type EnrichmentEvent struct {
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Outcome     Outcome         `json:"outcome"`
	Payload     json.RawMessage `json:"payload"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// EventPublisher fans enrichment events out to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, event EnrichmentEvent) error
}

// NewEnrichmentEvent serializes payload into an event stamped with the package clock.
func NewEnrichmentEvent(eventType, key string, outcome Outcome, payload any) (EnrichmentEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return EnrichmentEvent{}, fmt.Errorf("serialize %s payload: %w", eventType, err)
	}
	return EnrichmentEvent{
		Type:        eventType,
		Key:         key,
		Outcome:     outcome,
		Payload:     data,
		ProcessedAt: Now(),
	}, nil
}
