// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for image embeddings.
	DefaultCollectionName = "snaps_images"

	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// MaxRetries bounds connection attempts while Chroma starts up.
	MaxRetries int

	// RetryDelay is the initial backoff, doubled per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver, retrying with exponential
// backoff until the collection can be resolved.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		collectionID, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			d.collectionID = collectionID
			logger.Info("connected to Chroma",
				zap.String("url", c.URL),
				zap.String("collection", collectionName),
				zap.String("collection_id", collectionID),
			)
			return d, nil
		}

		lastErr = err
		if attempt < maxRetries {
			logger.Warn("chroma not ready, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("%w: getting or creating collection %q after %d attempts: %v",
		vector.ErrConnection, collectionName, maxRetries, lastErr)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// getOrCreateCollection gets an existing collection or creates a new one
// using cosine space.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	if _, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+d.collectionName, nil, &collection); err == nil {
		return collection.ID, nil
	}

	createBody := chromaCreateCollectionRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	}
	if _, err := d.do(ctx, http.MethodPost, collectionsPath, createBody, &collection); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return collection.ID, nil
}

func (d *Driver) collectionPath(op string) string {
	return fmt.Sprintf("%s/%s/%s", collectionsPath, d.collectionID, op)
}

// Add upserts documents with their embeddings and metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	reqBody := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		reqBody.IDs[i] = doc.ID
		reqBody.Embeddings[i] = doc.Embedding
		reqBody.Metadatas[i] = doc.Metadata.Map()
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), reqBody, nil); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	d.logger.Debug("added documents to chroma",
		zap.Int("count", len(docs)),
	)

	return nil
}

// buildWhere translates a vector.Filter into a Chroma where clause.
func buildWhere(f vector.Filter) map[string]any {
	var conds []map[string]any
	if f.Building != "" {
		conds = append(conds, map[string]any{vector.KeyBuilding: map[string]any{"$eq": f.Building}})
	}
	if f.Namespace != "" {
		conds = append(conds, map[string]any{vector.KeyNamespace: map[string]any{"$eq": f.Namespace}})
	}
	if f.FromYMD != 0 {
		conds = append(conds, map[string]any{vector.KeyShotYMD: map[string]any{"$gte": f.FromYMD}})
	}
	if f.ToYMD != 0 {
		conds = append(conds, map[string]any{vector.KeyShotYMD: map[string]any{"$lte": f.ToYMD}})
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return map[string]any{"$and": conds}
	}
}

// Query finds the topK most similar documents matching the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           buildWhere(filter),
		Include:         []string{"metadatas", "distances"},
	}

	var queryResp chromaQueryResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("query"), reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	var results []vector.QueryResult

	// Only one query embedding is sent, so only the first group matters.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	var distances []float32
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	for i, id := range ids {
		result := vector.QueryResult{
			Document: vector.Document{ID: id},
		}
		if i < len(metadatas) && metadatas[i] != nil {
			result.Metadata = vector.MetadataFromMap(metadatas[i])
		}
		// cosine distance to similarity
		if i < len(distances) {
			result.Score = 1.0 - distances[i]
		}
		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	reqBody := chromaGetRequest{
		IDs:     ids,
		Include: []string{"metadatas", "embeddings"},
	}

	var getResp chromaGetResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("get"), reqBody, &getResp); err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	docs := make([]vector.Document, len(getResp.IDs))
	for i, id := range getResp.IDs {
		docs[i] = vector.Document{ID: id}
		if i < len(getResp.Metadatas) && getResp.Metadatas[i] != nil {
			docs[i].Metadata = vector.MetadataFromMap(getResp.Metadatas[i])
		}
		if i < len(getResp.Embeddings) {
			docs[i].Embedding = getResp.Embeddings[i]
		}
	}

	return docs, nil
}

// IDs returns every document ID in the collection.
func (d *Driver) IDs(ctx context.Context) ([]string, error) {
	var getResp chromaGetResponse
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("get"), chromaGetRequest{Include: []string{}}, &getResp); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return getResp.IDs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Reset deletes the collection and creates it again empty.
func (d *Driver) Reset(ctx context.Context) error {
	status, err := d.do(ctx, http.MethodDelete, collectionsPath+"/"+d.collectionName, nil, nil)
	if err != nil && status != http.StatusNotFound {
		return fmt.Errorf("deleting collection %q: %w", d.collectionName, err)
	}

	collectionID, err := d.getOrCreateCollection(ctx)
	if err != nil {
		return fmt.Errorf("recreating collection %q: %w", d.collectionName, err)
	}
	d.collectionID = collectionID

	d.logger.Info("reset chroma collection", zap.String("collection", d.collectionName))
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ vector.Lister = (*Driver)(nil)
)
