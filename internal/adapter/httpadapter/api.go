// Package httpadapter serves the enrichment HTTP API.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/enrich"
)

const (
	maxRequestBytes = 1 << 20

	headerOutcome = "X-Enrichment-Outcome"
	headerCache   = "X-Cache"
)

// LocationResolver turns report text into a location.
type LocationResolver interface {
	Resolve(ctx context.Context, text string) (domain.Result[domain.LocationResult], error)
}

// ImageVerifier assesses the authenticity of an image. CacheKey names the
// entry a verification is cached under and keys its published event.
type ImageVerifier interface {
	Verify(ctx context.Context, imageURL, disasterContext string) domain.Result[domain.VerificationResult]
	CacheKey(imageURL, disasterContext string) string
}

// API holds the enrichment handlers. Events may be nil to disable publishing.
type API struct {
	location LocationResolver
	verifier ImageVerifier
	events   domain.EventPublisher
	logger   *slog.Logger
}

// NewAPI creates the enrichment handlers.
func NewAPI(location LocationResolver, verifier ImageVerifier, events domain.EventPublisher, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{location: location, verifier: verifier, events: events, logger: logger}
}

type geocodeRequest struct {
	Text string `json:"text"`
}

type verifyImageRequest struct {
	ImageURL        string `json:"imageUrl"`
	DisasterContext string `json:"disasterContext"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Text is required"})
		return
	}

	res, err := a.location.Resolve(r.Context(), req.Text)
	if err != nil {
		a.logger.Error("location processing failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	a.publish(r.Context(), domain.EventLocationResolved, enrich.GeocodeKey(res.Value.LocationName), res.Outcome, res.Value)
	writeResult(w, res.Outcome, res.Cached, res.Value)
}

func (a *API) handleVerifyImage(w http.ResponseWriter, r *http.Request) {
	var req verifyImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Image URL is required"})
		return
	}

	res := a.verifier.Verify(r.Context(), req.ImageURL, req.DisasterContext)

	a.publish(r.Context(), domain.EventImageVerified, a.verifier.CacheKey(req.ImageURL, req.DisasterContext), res.Outcome, res.Value)
	writeResult(w, res.Outcome, res.Cached, res.Value)
}

// publish hands the result to the event bus. Failures never affect the response.
func (a *API) publish(ctx context.Context, eventType, key string, outcome domain.Outcome, payload any) {
	if a.events == nil {
		return
	}
	ev, err := domain.NewEnrichmentEvent(eventType, key, outcome, payload)
	if err == nil {
		err = a.events.Publish(ctx, ev)
	}
	if err != nil {
		a.logger.Warn("enrichment event not published", "event_type", eventType, "key", key, "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, outcome domain.Outcome, cached bool, v any) {
	w.Header().Set(headerOutcome, string(outcome))
	if cached {
		w.Header().Set(headerCache, "hit")
	} else {
		w.Header().Set(headerCache, "miss")
	}
	sharedobs.WriteJSON(w, http.StatusOK, v)
}
