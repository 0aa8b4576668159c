// Package infinity implements pkg/embeddings' Embedder against an
// OpenAI-compatible /embeddings endpoint that accepts a modality field,
// as served by infinity-emb for CLIP and SigLIP models.
package infinity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/imageutil"
	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	// DefaultModel is the default multimodal model.
	DefaultModel = "openai/clip-vit-base-patch32"

	// DefaultBaseURL is the default infinity API URL.
	DefaultBaseURL = "http://localhost:7997"
)

// Embedder wraps an OpenAI-compatible multimodal embedding API.
type Embedder struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the infinity embedder.
type EmbedderConfig struct {
	// BaseURL is the API URL (e.g., "http://localhost:7997").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use.
	// Defaults to DefaultModel if empty.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Modality string   `json:"modality"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbedder creates a new embedder for an infinity-compatible server.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{
		baseURL: baseURL,
		model:   model,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "text", text)
}

// EmbedImage sends the image as a base64 data URI.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	uri := fmt.Sprintf("data:%s;base64,%s", imageutil.Sniff(data), base64.StdEncoding.EncodeToString(data))
	return e.embed(ctx, "image", uri)
}

func (e *Embedder) embed(ctx context.Context, modality, input string) ([]float32, error) {
	reqBody := embedRequest{
		Model:    e.model,
		Input:    []string{input},
		Modality: modality,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: embedding server returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}

	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	return embedResp.Data[0].Embedding, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
