// Package ingest validates uploaded images and writes them to the blob store,
// the record store and the vector store, keeping the three consistent.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/eventstream"
	"github.com/papercomputeco/snaps/pkg/imageutil"
	"github.com/papercomputeco/snaps/pkg/shotdate"
	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/vector"
)

// MaxBuildingLength is the longest building name accepted, in characters.
const MaxBuildingLength = 128

// Upload is a single image with its metadata.
type Upload struct {
	Filename string
	Data     []byte
	Building string
	ShotDate string
	Notes    string
}

// Result identifies a stored image.
type Result struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
}

// Config is the configuration for an Ingester.
type Config struct {
	// Storage persists the canonical image records.
	Storage storage.Driver

	// VectorDriver stores one embedding per record.
	VectorDriver vector.Driver

	// Embedder embeds the uploaded image bytes.
	Embedder embeddings.Embedder

	// Blobs stores the raw image bytes.
	Blobs blob.Store

	// Publisher receives image lifecycle events. Optional.
	Publisher eventstream.Publisher

	// Namespace is stamped on every record and vector.
	Namespace string

	Logger *zap.Logger
}

// Ingester runs the upload pipeline.
type Ingester struct {
	config *Config
	logger *zap.Logger
}

// upload is a validated Upload ready to be stored.
type upload struct {
	Upload
	ymd         int
	contentType string
	ext         string
}

// NewIngester returns an Ingester over the configured stores.
func NewIngester(c *Config) (*Ingester, error) {
	if c.Storage == nil || c.VectorDriver == nil || c.Embedder == nil || c.Blobs == nil {
		return nil, errors.New("ingester requires storage, vector driver, embedder and blob store")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return &Ingester{config: c, logger: c.Logger}, nil
}

// Namespace returns the namespace new images are written to.
func (in *Ingester) Namespace() string {
	return in.config.Namespace
}

// validate checks an upload without touching any store.
func validate(u Upload) (*upload, error) {
	u.Building = strings.TrimSpace(u.Building)
	u.ShotDate = strings.TrimSpace(u.ShotDate)
	u.Notes = strings.TrimSpace(u.Notes)

	switch {
	case len(u.Data) == 0:
		return nil, fmt.Errorf("%w: file", ErrMissingField)
	case u.Building == "":
		return nil, fmt.Errorf("%w: building", ErrMissingField)
	case u.ShotDate == "":
		return nil, fmt.Errorf("%w: shot_date", ErrMissingField)
	}

	if utf8.RuneCountInString(u.Building) > MaxBuildingLength {
		return nil, fmt.Errorf("%w: building exceeds %d characters", ErrInvalidField, MaxBuildingLength)
	}

	t, err := shotdate.Parse(u.ShotDate)
	if err != nil {
		return nil, err
	}
	u.ShotDate = t.Format(shotdate.Layout)

	contentType, err := imageutil.Validate(u.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, u.Filename, err)
	}

	return &upload{
		Upload:      u,
		ymd:         shotdate.YMD(t),
		contentType: contentType,
		ext:         imageutil.Extension(contentType),
	}, nil
}

// Ingest validates, embeds and stores a single image.
func (in *Ingester) Ingest(ctx context.Context, u Upload) (*Result, error) {
	up, err := validate(u)
	if err != nil {
		return nil, err
	}

	embedding, err := in.embed(ctx, up.Data)
	if err != nil {
		return nil, err
	}

	return in.store(ctx, up, embedding)
}

// IngestBatch validates every upload before any side effect, embeds them all
// and stores them in order. On failure it returns the results stored so far.
func (in *Ingester) IngestBatch(ctx context.Context, uploads []Upload) ([]Result, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: files", ErrMissingField)
	}

	ups := make([]*upload, len(uploads))
	for i, u := range uploads {
		up, err := validate(u)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		ups[i] = up
	}

	embeddings := make([][]float32, len(ups))
	for i, up := range ups {
		e, err := in.embed(ctx, up.Data)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		embeddings[i] = e
	}

	results := make([]Result, 0, len(ups))
	for i, up := range ups {
		res, err := in.store(ctx, up, embeddings[i])
		if err != nil {
			return results, fmt.Errorf("file %d: %w", i, err)
		}
		results = append(results, *res)
	}

	in.logger.Info("batch ingested", zap.Int("count", len(results)))
	return results, nil
}

func (in *Ingester) embed(ctx context.Context, data []byte) ([]float32, error) {
	embedding, err := in.config.Embedder.EmbedImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embedding image: %w", err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", vector.ErrEmbedding)
	}
	return embedding, nil
}

// store writes the blob, the record and the vector, undoing earlier writes
// when a later one fails.
func (in *Ingester) store(ctx context.Context, up *upload, embedding []float32) (*Result, error) {
	id := uuid.NewString()
	key := blob.ImageKey(id, up.ext)
	sum := sha256.Sum256(up.Data)

	if err := in.config.Blobs.Put(ctx, key, up.Data, up.contentType); err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	imageURL, err := in.config.Blobs.URL(ctx, key)
	if err != nil {
		in.removeBlob(ctx, key)
		return nil, fmt.Errorf("resolving image url: %w", err)
	}

	rec := &storage.Record{
		ID:          id,
		Building:    up.Building,
		ShotDate:    up.ShotDate,
		ShotYMD:     up.ymd,
		Notes:       up.Notes,
		StorageKey:  key,
		ContentType: up.contentType,
		Checksum:    hex.EncodeToString(sum[:]),
		Namespace:   in.config.Namespace,
		CreatedAt:   time.Now().UTC(),
	}

	if err := in.config.Storage.Create(ctx, rec); err != nil {
		in.removeBlob(ctx, key)
		return nil, fmt.Errorf("creating record: %w", err)
	}

	doc := vector.Document{
		ID:        id,
		Embedding: embedding,
		Metadata:  MetadataFor(rec, imageURL),
	}
	if err := in.config.VectorDriver.Add(ctx, []vector.Document{doc}); err != nil {
		if derr := in.config.Storage.Delete(ctx, id); derr != nil {
			in.logger.Error("failed to roll back record",
				zap.String("id", id),
				zap.Error(derr),
			)
		}
		in.removeBlob(ctx, key)
		return nil, fmt.Errorf("storing vector: %w", err)
	}

	in.logger.Info("image ingested",
		zap.String("id", id),
		zap.String("building", rec.Building),
		zap.String("shot_date", rec.ShotDate),
		zap.Int("embedding_dim", len(embedding)),
	)

	in.publish(ctx, eventstream.EventTypeImageIngested, rec, imageURL)

	return &Result{ID: id, ImageURL: imageURL}, nil
}

func (in *Ingester) removeBlob(ctx context.Context, key string) {
	if err := in.config.Blobs.Delete(ctx, key); err != nil {
		in.logger.Error("failed to roll back blob",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Delete removes an image from the vector store, the record store and the
// blob store, in that order.
func (in *Ingester) Delete(ctx context.Context, id string) error {
	rec, err := in.config.Storage.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := in.config.VectorDriver.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	if err := in.config.Storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if err := in.config.Blobs.Delete(ctx, rec.StorageKey); err != nil {
		in.logger.Warn("failed to delete blob",
			zap.String("id", id),
			zap.String("key", rec.StorageKey),
			zap.Error(err),
		)
	}

	in.logger.Info("image deleted", zap.String("id", id))
	in.publish(ctx, eventstream.EventTypeImageDeleted, rec, "")
	return nil
}

// Reindex re-embeds a stored record's blob and upserts its vector.
func (in *Ingester) Reindex(ctx context.Context, rec *storage.Record) error {
	data, err := in.config.Blobs.Get(ctx, rec.StorageKey)
	if err != nil {
		return fmt.Errorf("loading image %s: %w", rec.ID, err)
	}

	embedding, err := in.embed(ctx, data)
	if err != nil {
		return fmt.Errorf("image %s: %w", rec.ID, err)
	}

	imageURL, err := in.config.Blobs.URL(ctx, rec.StorageKey)
	if err != nil {
		return fmt.Errorf("resolving image url %s: %w", rec.ID, err)
	}

	doc := vector.Document{
		ID:        rec.ID,
		Embedding: embedding,
		Metadata:  MetadataFor(rec, imageURL),
	}
	if err := in.config.VectorDriver.Add(ctx, []vector.Document{doc}); err != nil {
		return fmt.Errorf("storing vector %s: %w", rec.ID, err)
	}
	return nil
}

func (in *Ingester) publish(ctx context.Context, eventType string, rec *storage.Record, imageURL string) {
	if in.config.Publisher == nil {
		return
	}

	event := eventstream.NewImageEvent(eventType, eventstream.ImagePayload{
		ID:        rec.ID,
		Building:  rec.Building,
		ShotDate:  rec.ShotDate,
		ShotYMD:   rec.ShotYMD,
		Notes:     rec.Notes,
		ImageURL:  imageURL,
		Namespace: rec.Namespace,
	})
	if err := in.config.Publisher.PublishImage(ctx, event); err != nil {
		in.logger.Warn("failed to publish image event",
			zap.String("event_type", eventType),
			zap.String("id", rec.ID),
			zap.Error(err),
		)
	}
}

// MetadataFor builds the vector payload for a record.
func MetadataFor(rec *storage.Record, imageURL string) vector.Metadata {
	return vector.Metadata{
		Building:  rec.Building,
		ShotDate:  rec.ShotDate,
		ShotYMD:   rec.ShotYMD,
		ImageURL:  imageURL,
		Notes:     rec.Notes,
		Namespace: rec.Namespace,
	}
}
