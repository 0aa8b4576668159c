// Package api provides the HTTP API for uploading, browsing and searching images.
package api

import (
	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/ingest"
)

// DefaultBodyLimit caps request bodies, which bounds upload sizes.
const DefaultBodyLimit = 32 << 20

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// AllowOrigins is the CORS allow-list. Empty allows every origin.
	AllowOrigins []string

	// BodyLimit is the maximum request body size in bytes.
	BodyLimit int

	// Ingester runs uploads and deletes. Upload routes return 503 without it.
	Ingester *ingest.Ingester

	// Searcher runs image search. The search route returns 503 without it.
	Searcher *search.Searcher

	// Blobs resolves image URLs and serves media.
	Blobs blob.Store

	// EnableMCP mounts the MCP search tool at /mcp.
	EnableMCP bool
}
