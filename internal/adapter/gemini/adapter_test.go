package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MatchPoster/internal/config"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	backend, err := NewGeminiAdapter(&config.GeneratorConfig{
		Provider: model.ProviderGemini,
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		Model:    "gemini-2.5-flash-image",
		Timeout:  5,
	}, logger)
	require.NoError(t, err)
	return backend.(*Adapter)
}

func TestGenerate_ReturnsInlineImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-image:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"TEXT", "IMAGE"}, body.GenerationConfig.ResponseModalities)
		require.NotNil(t, body.GenerationConfig.ImageConfig)
		assert.Equal(t, "9:16", body.GenerationConfig.ImageConfig.AspectRatio)
		assert.Equal(t, "a stadium", body.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"` +
			base64.StdEncoding.EncodeToString(png) + `"}}]},"finishReason":"STOP"}]}`))
	})

	img, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "a stadium", AspectRatio: model.PortraitAspect})
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestGenerate_RateLimitedWithRetryInfo(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED",
			"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"3s"}]}}`))
	})

	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	require.ErrorIs(t, err, model.ErrRateLimited)
	hint, ok := model.RetryHint(err)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, hint)
}

func TestGenerate_RateLimitedWithHeader(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	})

	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	require.ErrorIs(t, err, model.ErrRateLimited)
	hint, _ := model.RetryHint(err)
	assert.Equal(t, 7*time.Second, hint)
}

func TestGenerate_SafetyFinishReason(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"IMAGE_SAFETY"}]}`))
	})
	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	assert.ErrorIs(t, err, model.ErrContentRejected)
}

func TestGenerate_PromptBlocked(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})
	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	assert.ErrorIs(t, err, model.ErrContentRejected)
}

func TestGenerate_TextOnlyIsRefusal(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I can't create that image."}]},"finishReason":"STOP"}]}`))
	})
	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	assert.ErrorIs(t, err, model.ErrContentRejected)
}

func TestGenerate_ServerErrorUnclassified(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
	})
	_, err := a.Generate(context.Background(), model.BackendRequest{Prompt: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrRateLimited)
	assert.NotErrorIs(t, err, model.ErrContentRejected)

	var ue *model.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestNewGeminiAdapter_RequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(&config.GeneratorConfig{Provider: model.ProviderGemini}, logrus.New())
	assert.ErrorIs(t, err, model.ErrBackendNotConfigured)
}
