package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on several commands (e.g. --sqlite on
// "snaps serve", "snaps ingest" and "snaps reembed").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen       = "api-listen"
	FlagStorageProvider = "storage-provider"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagBlobProvider    = "blob-provider"
	FlagBlobRoot        = "blob-root"
	FlagBlobBaseURL     = "blob-base-url"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagVectorStoreColl = "vector-store-collection"
	FlagNamespace       = "namespace"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagRedisAddr       = "redis-addr"
	FlagEventsProvider  = "events-provider"
	FlagEventsTopic     = "events-topic"
	FlagAPITarget       = "api-target"
)

// StackFlags are the flags shared by every command that builds the local
// ingest and search stack.
var StackFlags = FlagSet{
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Record store provider (sqlite, postgres, memory)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite record database"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the record store"},
	FlagBlobProvider:    {Name: "blob-provider", ViperKey: "blob.provider", Description: "Blob store provider (local, minio)"},
	FlagBlobRoot:        {Name: "blob-root", ViperKey: "blob.root", Description: "Directory for locally stored images"},
	FlagBlobBaseURL:     {Name: "blob-base-url", ViperKey: "blob.base_url", Description: "Public base URL for locally stored images"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (qdrant, pgvector, sqlite, chroma, memory)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store target (host:port, DSN, path or URL)"},
	FlagVectorStoreColl: {Name: "vector-store-collection", ViperKey: "vector_store.collection", Description: "Vector collection or table name"},
	FlagNamespace:       {Name: "namespace", ViperKey: "vector_store.namespace", Description: "Namespace written to and searched in the vector store"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (infinity, onnx, hash)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding service URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagRedisAddr:       {Name: "redis-addr", ViperKey: "cache.redis_addr", Description: "Redis address for the query embedding cache"},
	FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Event stream provider (kafka, nop)"},
	FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for image events"},
}

// ClientFlags are the flags of commands that talk to a running API server.
var ClientFlags = FlagSet{
	FlagAPITarget: {Name: "api-target", ViperKey: "client.api_target", Description: "Snaps API server URL"},
}

// StackFlagKeys returns every StackFlags registry key except the server
// listen address.
func StackFlagKeys() []string {
	return []string{
		FlagStorageProvider, FlagSQLite, FlagPostgresDSN,
		FlagBlobProvider, FlagBlobRoot, FlagBlobBaseURL,
		FlagVectorStoreProv, FlagVectorStoreTgt, FlagVectorStoreColl, FlagNamespace,
		FlagEmbeddingProv, FlagEmbeddingTgt, FlagEmbeddingModel, FlagEmbeddingDims,
		FlagRedisAddr, FlagEventsProvider, FlagEventsTopic,
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStackFlags registers every stack flag except the listen address. The
// values are only read back through viper, so the targets are discarded.
func AddStackFlags(cmd *cobra.Command) {
	for _, key := range StackFlagKeys() {
		if key == FlagEmbeddingDims {
			continue
		}
		AddStringFlag(cmd, StackFlags, key, new(string))
	}
	AddUintFlag(cmd, StackFlags, FlagEmbeddingDims, new(uint))
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
