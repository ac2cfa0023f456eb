// Package googlemaps implements domain.Geocoder on the Google Maps Geocoding API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

const (
	providerName   = "google"
	defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	statusOK       = "OK"
)

// Client implements domain.Geocoder using the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Google Maps geocoding client.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Geocode converts an address to the coordinates of the first result. Any
// status other than OK, or an OK answer without results, is returned as a
// *domain.StatusError.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("google geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinates{}, fmt.Errorf("google maps returned status %d", resp.StatusCode)
	}

	var gmResp response
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode response: %w", err)
	}

	if gmResp.Status != statusOK {
		c.logger.Debug("google geocoding status", "address", address, "status", gmResp.Status, "message", gmResp.ErrorMessage)
		return domain.Coordinates{}, &domain.StatusError{Provider: providerName, Status: gmResp.Status}
	}
	if len(gmResp.Results) == 0 {
		return domain.Coordinates{}, &domain.StatusError{Provider: providerName, Status: "ZERO_RESULTS"}
	}

	loc := gmResp.Results[0].Geometry.Location
	return domain.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}

type response struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, REQUEST_DENIED, INVALID_REQUEST
	ErrorMessage string `json:"error_message"`
}
