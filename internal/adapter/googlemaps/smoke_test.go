//go:build googlemaps

package googlemaps

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: GOOGLE_MAPS_API_KEY=... go test -tags=googlemaps ./internal/adapter/googlemaps/ -v -count=1
func TestSmoke_Geocode(t *testing.T) {
	key := os.Getenv("GOOGLE_MAPS_API_KEY")
	if key == "" {
		t.Fatal("GOOGLE_MAPS_API_KEY must be set to run smoke tests")
	}
	c := NewClient(key, 10*time.Second, nil)

	coords, err := c.Geocode(context.Background(), "Manhattan, NYC")
	require.NoError(t, err)
	assert.InDelta(t, 40.78, coords.Lat, 0.1)
	assert.InDelta(t, -73.97, coords.Lng, 0.1)
}
