package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent snaps configuration stored as config.toml
// in the .snaps/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Blob        BlobConfig        `toml:"blob"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Cache       CacheConfig       `toml:"cache"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds record store settings.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// BlobConfig holds image blob store settings. Root and BaseURL apply to the
// local provider, the rest to minio.
type BlobConfig struct {
	Provider      string `toml:"provider,omitempty"`
	Root          string `toml:"root,omitempty"`
	BaseURL       string `toml:"base_url,omitempty"`
	Endpoint      string `toml:"endpoint,omitempty"`
	Bucket        string `toml:"bucket,omitempty"`
	AccessKey     string `toml:"access_key,omitempty"`
	SecretKey     string `toml:"secret_key,omitempty"`
	UseSSL        bool   `toml:"use_ssl,omitempty"`
	Region        string `toml:"region,omitempty"`
	PresignExpiry string `toml:"presign_expiry,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen           string   `toml:"listen,omitempty"`
	CORSAllowOrigins []string `toml:"cors_allow_origins,omitempty"`
	BodyLimitMB      int      `toml:"body_limit_mb,omitempty"`
	MCP              bool     `toml:"mcp"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server (snaps upload, snaps search, snaps show). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	Namespace  string `toml:"namespace,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider        string `toml:"provider,omitempty"`
	Target          string `toml:"target,omitempty"`
	Model           string `toml:"model,omitempty"`
	Dimensions      uint   `toml:"dimensions,omitempty"`
	VisionModelPath string `toml:"vision_model_path,omitempty"`
	TextModelPath   string `toml:"text_model_path,omitempty"`
	TokenizerPath   string `toml:"tokenizer_path,omitempty"`
	ONNXLibraryPath string `toml:"onnx_library_path,omitempty"`
}

// CacheConfig holds the redis query embedding cache settings. An empty
// RedisAddr disables the cache.
type CacheConfig struct {
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	TTL           string `toml:"ttl,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error { *field(c) = splitList(v); return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

// splitList parses a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"blob.provider":       stringKey(func(c *Config) *string { return &c.Blob.Provider }),
	"blob.root":           stringKey(func(c *Config) *string { return &c.Blob.Root }),
	"blob.base_url":       stringKey(func(c *Config) *string { return &c.Blob.BaseURL }),
	"blob.endpoint":       stringKey(func(c *Config) *string { return &c.Blob.Endpoint }),
	"blob.bucket":         stringKey(func(c *Config) *string { return &c.Blob.Bucket }),
	"blob.access_key":     stringKey(func(c *Config) *string { return &c.Blob.AccessKey }),
	"blob.secret_key":     stringKey(func(c *Config) *string { return &c.Blob.SecretKey }),
	"blob.use_ssl":        boolKey("blob.use_ssl", func(c *Config) *bool { return &c.Blob.UseSSL }),
	"blob.region":         stringKey(func(c *Config) *string { return &c.Blob.Region }),
	"blob.presign_expiry": stringKey(func(c *Config) *string { return &c.Blob.PresignExpiry }),

	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.cors_allow_origins": listKey(func(c *Config) *[]string { return &c.API.CORSAllowOrigins }),
	"api.body_limit_mb":      intKey("api.body_limit_mb", func(c *Config) *int { return &c.API.BodyLimitMB }),
	"api.mcp":                boolKey("api.mcp", func(c *Config) *bool { return &c.API.MCP }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.namespace":  stringKey(func(c *Config) *string { return &c.VectorStore.Namespace }),
	"vector_store.api_key":    stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.vision_model_path": stringKey(func(c *Config) *string { return &c.Embedding.VisionModelPath }),
	"embedding.text_model_path":   stringKey(func(c *Config) *string { return &c.Embedding.TextModelPath }),
	"embedding.tokenizer_path":    stringKey(func(c *Config) *string { return &c.Embedding.TokenizerPath }),
	"embedding.onnx_library_path": stringKey(func(c *Config) *string { return &c.Embedding.ONNXLibraryPath }),

	"cache.redis_addr":     stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),
	"cache.redis_password": stringKey(func(c *Config) *string { return &c.Cache.RedisPassword }),
	"cache.redis_db":       intKey("cache.redis_db", func(c *Config) *int { return &c.Cache.RedisDB }),
	"cache.ttl":            stringKey(func(c *Config) *string { return &c.Cache.TTL }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// keyOrder lists the keys in TOML section layout order.
var keyOrder = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"blob.provider",
	"blob.root",
	"blob.base_url",
	"blob.endpoint",
	"blob.bucket",
	"blob.access_key",
	"blob.secret_key",
	"blob.use_ssl",
	"blob.region",
	"blob.presign_expiry",
	"api.listen",
	"api.cors_allow_origins",
	"api.body_limit_mb",
	"api.mcp",
	"client.api_target",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"vector_store.namespace",
	"vector_store.api_key",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.vision_model_path",
	"embedding.text_model_path",
	"embedding.tokenizer_path",
	"embedding.onnx_library_path",
	"cache.redis_addr",
	"cache.redis_password",
	"cache.redis_db",
	"cache.ttl",
	"events.provider",
	"events.brokers",
	"events.topic",
}

// secretKeys are masked by "snaps config list".
var secretKeys = map[string]bool{
	"blob.secret_key":      true,
	"vector_store.api_key": true,
	"cache.redis_password": true,
	"storage.postgres_dsn": true,
}

// IsSecretKey reports whether a key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
