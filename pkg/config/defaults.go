package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "snaps.db"

	defaultBlobProvider  = "local"
	defaultBlobRoot      = "media"
	defaultBlobBaseURL   = "http://localhost:8081"
	defaultBlobBucket    = "snaps"
	defaultPresignExpiry = "15m"

	defaultAPIListen   = ":8081"
	defaultBodyLimitMB = 32

	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider   = "sqlite"
	defaultVectorTarget     = "snaps-vectors.db"
	defaultVectorCollection = "images"

	defaultEmbeddingProvider   = "hash"
	defaultEmbeddingTarget     = "http://localhost:7997"
	defaultEmbeddingModel      = "openai/clip-vit-base-patch32"
	defaultEmbeddingDimensions = 512

	defaultCacheTTL = "24h"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "snaps.images"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		Blob: BlobConfig{
			Provider:      defaultBlobProvider,
			Root:          defaultBlobRoot,
			BaseURL:       defaultBlobBaseURL,
			Bucket:        defaultBlobBucket,
			PresignExpiry: defaultPresignExpiry,
		},
		API: APIConfig{
			Listen:      defaultAPIListen,
			BodyLimitMB: defaultBodyLimitMB,
			MCP:         true,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Cache: CacheConfig{
			TTL: defaultCacheTTL,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
