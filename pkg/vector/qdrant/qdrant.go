// Package qdrant provides a Qdrant vector database driver implementation
// over Qdrant's gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for image vectors.
	DefaultCollectionName = "snaps_images"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334
)

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	client     *qdrant.Client
	collection string
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the Qdrant gRPC address as "host" or "host:port".
	Target string

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions is the embedding size used when creating the collection.
	Dimensions uint
}

// NewDriver connects to Qdrant and makes sure the collection exists with
// cosine distance and payload indexes for the filterable fields.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to qdrant",
		zap.String("target", c.Target),
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return d, nil
}

func splitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		return target, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// ensureCollection creates the collection when missing and otherwise
// verifies that its vector size matches the configured dimensions.
func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, d.collection, err)
	}

	if exists {
		info, err := d.client.GetCollectionInfo(ctx, d.collection)
		if err != nil {
			return fmt.Errorf("getting collection info %q: %w", d.collection, err)
		}

		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != uint64(d.dimensions) {
			return fmt.Errorf("%w: collection %q has size %d, embedder produces %d",
				vector.ErrDimensionMismatch, d.collection, size, d.dimensions)
		}
		return nil
	}

	return d.createCollection(ctx)
}

func (d *Driver) createCollection(ctx context.Context) error {
	err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	indexes := map[string]qdrant.FieldType{
		vector.KeyBuilding:  qdrant.FieldType_FieldTypeKeyword,
		vector.KeyNamespace: qdrant.FieldType_FieldTypeKeyword,
		vector.KeyShotYMD:   qdrant.FieldType_FieldTypeInteger,
	}
	for field, fieldType := range indexes {
		_, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: d.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("creating %s payload index: %w", field, err)
		}
	}

	d.logger.Info("created qdrant collection",
		zap.String("collection", d.collection),
		zap.Uint("dimensions", d.dimensions),
	)
	return nil
}

func (d *Driver) checkDims(v []float32) error {
	if uint(len(v)) != d.dimensions {
		return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(v), d.dimensions)
	}
	return nil
}

// Add upserts documents as points keyed by their UUID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if err := d.checkDims(doc.Embedding); err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(doc.Metadata.Map()),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", zap.Int("count", len(docs)))
	return nil
}

// Query runs a filtered nearest-neighbour query.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := d.checkDims(embedding); err != nil {
		return nil, err
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       p.GetId().GetUuid(),
				Metadata: vector.MetadataFromMap(payloadToMap(p.GetPayload())),
			},
			Score: p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", zap.Int("results", len(results)))
	return results, nil
}

// buildFilter translates a vector.Filter into Qdrant must-conditions.
func buildFilter(f vector.Filter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}

	var must []*qdrant.Condition
	if f.Building != "" {
		must = append(must, qdrant.NewMatch(vector.KeyBuilding, f.Building))
	}
	if f.Namespace != "" {
		must = append(must, qdrant.NewMatch(vector.KeyNamespace, f.Namespace))
	}
	if f.FromYMD != 0 || f.ToYMD != 0 {
		r := &qdrant.Range{}
		if f.FromYMD != 0 {
			r.Gte = qdrant.PtrOf(float64(f.FromYMD))
		}
		if f.ToYMD != 0 {
			r.Lte = qdrant.PtrOf(float64(f.ToYMD))
		}
		must = append(must, qdrant.NewRange(vector.KeyShotYMD, r))
	}

	return &qdrant.Filter{Must: must}
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// Get retrieves points with their vectors and payloads.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, vector.Document{
			ID:        p.GetId().GetUuid(),
			Embedding: p.GetVectors().GetVector().GetData(),
			Metadata:  vector.MetadataFromMap(payloadToMap(p.GetPayload())),
		})
	}
	return docs, nil
}

// scrollPage is the number of points fetched per scroll request.
const scrollPage = 256

// IDs scrolls the collection and returns every point ID.
func (d *Driver) IDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		offset *qdrant.PointId
	)
	for {
		points, next, err := d.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: d.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPage)),
			WithPayload:    qdrant.NewWithPayload(false),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling points: %w", err)
		}
		for _, p := range points {
			ids = append(ids, p.GetId().GetUuid())
		}
		if next == nil {
			return ids, nil
		}
		offset = next
	}
}

// Delete removes points by ID.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant", zap.Int("count", len(ids)))
	return nil
}

// Reset drops and recreates the collection.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.client.DeleteCollection(ctx, d.collection); err != nil {
		return fmt.Errorf("deleting collection %q: %w", d.collection, err)
	}
	return d.createCollection(ctx)
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var (
	_ vector.Driver = (*Driver)(nil)
	_ vector.Lister = (*Driver)(nil)
)
