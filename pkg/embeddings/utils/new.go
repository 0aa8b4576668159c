// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/embeddings/hash"
	"github.com/papercomputeco/snaps/pkg/embeddings/infinity"
	"github.com/papercomputeco/snaps/pkg/embeddings/onnx"
)

// Supported embedding providers.
const (
	ProviderInfinity = "infinity"
	ProviderONNX     = "onnx"
	ProviderHash     = "hash"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   uint

	// ONNX artefacts.
	VisionModelPath string
	TextModelPath   string
	TokenizerPath   string
	LibraryPath     string

	Logger *zap.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case ProviderInfinity:
		return infinity.NewEmbedder(infinity.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	case ProviderONNX:
		return onnx.NewEmbedder(onnx.Config{
			LibraryPath:     o.LibraryPath,
			VisionModelPath: o.VisionModelPath,
			TextModelPath:   o.TextModelPath,
			TokenizerPath:   o.TokenizerPath,
			Dimensions:      o.Dimensions,
			Logger:          o.Logger,
		})
	case ProviderHash:
		return hash.NewEmbedder(o.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
