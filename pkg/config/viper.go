package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/snaps/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SNAPS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SNAPS_API_LISTEN, SNAPS_VECTOR_STORE_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("SNAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if version := v.GetInt("version"); version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", version, CurrentV)
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("blob.provider", d.Blob.Provider)
	v.SetDefault("blob.root", d.Blob.Root)
	v.SetDefault("blob.base_url", d.Blob.BaseURL)
	v.SetDefault("blob.endpoint", d.Blob.Endpoint)
	v.SetDefault("blob.bucket", d.Blob.Bucket)
	v.SetDefault("blob.access_key", d.Blob.AccessKey)
	v.SetDefault("blob.secret_key", d.Blob.SecretKey)
	v.SetDefault("blob.use_ssl", d.Blob.UseSSL)
	v.SetDefault("blob.region", d.Blob.Region)
	v.SetDefault("blob.presign_expiry", d.Blob.PresignExpiry)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.cors_allow_origins", d.API.CORSAllowOrigins)
	v.SetDefault("api.body_limit_mb", d.API.BodyLimitMB)
	v.SetDefault("api.mcp", d.API.MCP)

	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.namespace", d.VectorStore.Namespace)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.vision_model_path", d.Embedding.VisionModelPath)
	v.SetDefault("embedding.text_model_path", d.Embedding.TextModelPath)
	v.SetDefault("embedding.tokenizer_path", d.Embedding.TokenizerPath)
	v.SetDefault("embedding.onnx_library_path", d.Embedding.ONNXLibraryPath)

	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper materializes a Config from v after flags, env, file and
// defaults have been layered.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Blob: BlobConfig{
			Provider:      v.GetString("blob.provider"),
			Root:          v.GetString("blob.root"),
			BaseURL:       v.GetString("blob.base_url"),
			Endpoint:      v.GetString("blob.endpoint"),
			Bucket:        v.GetString("blob.bucket"),
			AccessKey:     v.GetString("blob.access_key"),
			SecretKey:     v.GetString("blob.secret_key"),
			UseSSL:        v.GetBool("blob.use_ssl"),
			Region:        v.GetString("blob.region"),
			PresignExpiry: v.GetString("blob.presign_expiry"),
		},
		API: APIConfig{
			Listen:           v.GetString("api.listen"),
			CORSAllowOrigins: stringSlice(v, "api.cors_allow_origins"),
			BodyLimitMB:      v.GetInt("api.body_limit_mb"),
			MCP:              v.GetBool("api.mcp"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
			Namespace:  v.GetString("vector_store.namespace"),
			APIKey:     v.GetString("vector_store.api_key"),
		},
		Embedding: EmbeddingConfig{
			Provider:        v.GetString("embedding.provider"),
			Target:          v.GetString("embedding.target"),
			Model:           v.GetString("embedding.model"),
			Dimensions:      v.GetUint("embedding.dimensions"),
			VisionModelPath: v.GetString("embedding.vision_model_path"),
			TextModelPath:   v.GetString("embedding.text_model_path"),
			TokenizerPath:   v.GetString("embedding.tokenizer_path"),
			ONNXLibraryPath: v.GetString("embedding.onnx_library_path"),
		},
		Cache: CacheConfig{
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
			TTL:           v.GetString("cache.ttl"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  stringSlice(v, "events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}
}

// stringSlice reads a list key. Env vars and flags arrive as one comma
// separated string, the TOML file as an array.
func stringSlice(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, splitList(item)...)
	}
	return out
}

// Resolve runs the full precedence chain for cmd: it initializes viper from
// the --config-dir flag, binds the given registered flags and returns the
// merged Config.
func Resolve(cmd *cobra.Command, fs FlagSet, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, fs, registryKeys)
	return FromViper(v), nil
}
