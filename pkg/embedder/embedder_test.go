package embedder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soundprediction/medinsight/pkg/config"
	"github.com/soundprediction/medinsight/pkg/embedder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		config embedder.Config
	}{
		{
			name:   "valid API key",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-ada-002"},
		},
		{
			name:   "empty API key",
			apiKey: "",
			config: embedder.Config{Model: "text-embedding-ada-002"},
		},
		{
			name:   "custom model",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-3-small"},
		},
		{
			name:   "custom base URL",
			apiKey: "test-api-key",
			config: embedder.Config{Model: "text-embedding-ada-002", BaseURL: "https://api.example.com"},
		},
		{
			name:   "empty model uses default",
			apiKey: "test-api-key",
			config: embedder.Config{}, // Empty config should use defaults
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder(tt.apiKey, tt.config)
			assert.NotNil(t, client)

			// Verify client has proper defaults set
			assert.Greater(t, client.Dimensions(), 0)
		})
	}
}

func TestEmbedderInterface(t *testing.T) {
	// Test that OpenAIEmbedder implements the Client interface
	var _ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
}

func TestEmbedderDimensions(t *testing.T) {
	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{
		Model: "text-embedding-ada-002",
	})

	// Test dimensions method
	dims := client.Dimensions()
	assert.Greater(t, dims, 0)
}

func TestEmbedderBlankInput(t *testing.T) {
	ctx := context.Background()
	client := embedder.NewOpenAIEmbedder("invalid-key", embedder.Config{
		Model: "text-embedding-ada-002",
	})
	require.NotNil(t, client)

	// Blank text never reaches the API
	embedding, err := client.EmbedSingle(ctx, "   ", embedder.ModeQuery)
	assert.NoError(t, err)
	assert.Nil(t, embedding)

	embeddings, err := client.Embed(ctx, nil, embedder.ModePassage)
	assert.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestOpenAIEmbedderModes(t *testing.T) {
	var inputs [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs = append(inputs, req.Input)

		// Reply out of order to check index mapping
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "e5"})
	}))
	defer srv.Close()

	client := embedder.NewOpenAIEmbedder("", embedder.Config{
		Model:         "e5-large",
		BaseURL:       srv.URL,
		Dimensions:    2,
		InputPrefixes: true,
		BatchSize:     2,
	})

	vecs, err := client.Embed(context.Background(), []string{"a", "b", "c"}, embedder.ModePassage)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{0, 1}, vecs[0])
	assert.Equal(t, []float32{1, 1}, vecs[1])
	assert.Equal(t, []float32{0, 1}, vecs[2])

	_, err = client.EmbedSingle(context.Background(), "fever", embedder.ModeQuery)
	require.NoError(t, err)

	require.Len(t, inputs, 3)
	assert.Equal(t, []string{"passage: a", "passage: b"}, inputs[0])
	assert.Equal(t, []string{"passage: c"}, inputs[1])
	assert.Equal(t, []string{"query: fever"}, inputs[2])
}

func TestOpenAIEmbedderRequestsDimensions(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		dims     int
		wantDims any
	}{
		{name: "small with reduced size", model: "text-embedding-3-small", dims: 512, wantDims: float64(512)},
		{name: "large default size", model: "text-embedding-3-large", wantDims: float64(3072)},
		{name: "self-hosted model", model: "e5-large", dims: 1024, wantDims: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"object": "list",
					"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{1, 0}}},
				})
			}))
			defer srv.Close()

			client := embedder.NewOpenAIEmbedder("", embedder.Config{Model: tt.model, BaseURL: srv.URL, Dimensions: tt.dims})
			_, err := client.EmbedSingle(context.Background(), "fever", embedder.ModeQuery)
			require.NoError(t, err)

			if got := body["dimensions"]; got != tt.wantDims {
				t.Errorf("dimensions = %v, want %v", got, tt.wantDims)
			}
		})
	}
}

func TestCircuitBreakerPassThrough(t *testing.T) {
	inner := embedder.NewOpenAIEmbedder("k", embedder.Config{Dimensions: 8})
	wrapped := embedder.NewCircuitBreakerClient(inner, config.CircuitBreakerConfig{Enabled: true, MaxRequests: 1}, nil, "embedder", nil)

	assert.Equal(t, 8, wrapped.Dimensions())

	vec, err := wrapped.EmbedSingle(context.Background(), "", embedder.ModeQuery)
	assert.NoError(t, err)
	assert.Nil(t, vec)

	assert.Same(t, inner, embedder.NewCircuitBreakerClient(inner, config.CircuitBreakerConfig{}, nil, "embedder", nil))
}

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name         string
		config       embedder.Config
		expectedDims int
	}{
		{
			name: "default config",
			config: embedder.Config{
				Model: "text-embedding-ada-002",
			},
			expectedDims: 1536,
		},
		{
			name: "config with custom settings",
			config: embedder.Config{
				Model:   "text-embedding-3-small",
				BaseURL: "https://custom.openai.com",
			},
			expectedDims: 1536,
		},
		{
			name: "large model",
			config: embedder.Config{
				Model: "text-embedding-3-large",
			},
			expectedDims: 3072,
		},
		{
			name: "custom dimensions",
			config: embedder.Config{
				Model:      "custom-model",
				Dimensions: 512,
			},
			expectedDims: 512,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder("test-key", tt.config)
			assert.NotNil(t, client)
			assert.Equal(t, tt.expectedDims, client.Dimensions())
		})
	}
}
