package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{
		APIKey:     "test-key",
		Model:      "gemini-1.5-flash",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestGenerateText(t *testing.T) {
	var gotPath, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateResponse(" Manhattan\n")))
	})

	out, err := c.GenerateText(context.Background(), "Extract the location: flood in Manhattan")
	require.NoError(t, err)
	assert.Equal(t, "Manhattan", out)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-1.5-flash:generateContent"), gotPath)
	assert.Contains(t, gotBody, "flood in Manhattan")
}

func TestGenerateFromImage_SendsInlineData(t *testing.T) {
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateResponse("Confidence Score: 87")))
	})

	out, err := c.GenerateFromImage(context.Background(), "Is this real?", image, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Confidence Score: 87", out)
	assert.Contains(t, gotBody, base64.StdEncoding.EncodeToString(image))
	assert.Contains(t, gotBody, "image/png")
	assert.Contains(t, gotBody, "Is this real?")
}

func TestGenerate_EmptyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateResponse("   ")))
	})

	_, err := c.GenerateText(context.Background(), "prompt")
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestGenerate_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := c.GenerateText(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Model: "m"})
	assert.Error(t, err)
	_, err = NewClient(context.Background(), Config{APIKey: "k"})
	assert.Error(t, err)
}
