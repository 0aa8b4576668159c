// Package search provides shared search types and logic for filtered
// similarity search over stored images. It is used by both the REST API
// endpoint and the MCP server tool.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/shotdate"
	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	// DefaultTopK is used when a request does not specify k.
	DefaultTopK = 10

	// MaxTopK is the largest k accepted.
	MaxTopK = 100

	// BuildingBoost is added to the score of hits in the requested building.
	BuildingBoost = 0.02
)

var (
	// ErrMissingQuery is returned when neither a text query nor a query
	// image is given.
	ErrMissingQuery = errors.New("provide q or query_image_id")

	// ErrInvalidTopK is returned when k is outside 1..MaxTopK.
	ErrInvalidTopK = fmt.Errorf("k must be between 1 and %d", MaxTopK)

	// ErrInvalidRange is returned when date_from is after date_to.
	ErrInvalidRange = errors.New("date_from must not be after date_to")
)

// synonyms expands common construction site terms into the phrasings the
// embedding model is likely to have seen. Each list includes its key.
var synonyms = map[string][]string{
	"excavator": {"excavator", "digger", "backhoe", "construction excavator"},
	"bulldozer": {"bulldozer", "dozer"},
	"crane":     {"crane", "tower crane", "mobile crane"},
	"brick":     {"brick", "masonry"},
	"cable":     {"cable", "wire", "electrical cable"},
}

// Input represents the input arguments for a search request.
type Input struct {
	Query        string `json:"q,omitempty" jsonschema:"free text describing the image to find"`
	QueryImageID string `json:"query_image_id,omitempty" jsonschema:"id of a stored image to find similar images to"`
	Building     string `json:"building,omitempty" jsonschema:"only return images of this building"`
	DateFrom     string `json:"date_from,omitempty" jsonschema:"inclusive lower bound on the shot date, YYYY-MM-DD"`
	DateTo       string `json:"date_to,omitempty" jsonschema:"inclusive upper bound on the shot date, YYYY-MM-DD"`
	TopK         int    `json:"k,omitempty" jsonschema:"maximum number of results, 1 to 100, default 10"`
	Namespace    string `json:"namespace,omitempty" jsonschema:"only return images from this namespace"`
}

// Result represents a single search result.
type Result struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	ImageURL string  `json:"image_url"`
	Building string  `json:"building"`
	ShotDate string  `json:"shot_date"`
	Notes    string  `json:"notes"`
}

// Output represents the output of a search operation.
type Output struct {
	Results   []Result `json:"results"`
	Count     int      `json:"count"`
	Namespace string   `json:"namespace"`
}

// Config holds the collaborators a Searcher queries.
type Config struct {
	Embedder     embeddings.Embedder
	VectorDriver vector.Driver
	Storage      storage.Driver
	Blobs        blob.Store

	// Namespace is searched when a request names none.
	Namespace string

	Logger *zap.Logger
}

// Searcher resolves query vectors, runs filtered top-k queries and
// hydrates the hits from the record store.
type Searcher struct {
	config *Config
	logger *zap.Logger
}

// NewSearcher returns a Searcher.
func NewSearcher(c *Config) (*Searcher, error) {
	if c.Embedder == nil || c.VectorDriver == nil || c.Storage == nil || c.Blobs == nil {
		return nil, errors.New("searcher requires embedder, vector driver, storage and blob store")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return &Searcher{config: c, logger: c.Logger}, nil
}

// IsInvalidInput reports whether err was caused by a bad request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrMissingQuery) ||
		errors.Is(err, ErrInvalidTopK) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, shotdate.ErrInvalid)
}

// NormalizeQuery trims, lower-cases and collapses whitespace, then
// spell-corrects each word against the domain vocabulary.
func NormalizeQuery(q string) string {
	words := strings.Fields(strings.ToLower(q))
	for i, w := range words {
		words[i] = CorrectWord(w)
	}
	return strings.Join(words, " ")
}

// ExpandQuery returns the terms embedded for a normalized query.
func ExpandQuery(q string) []string {
	if terms, ok := synonyms[q]; ok {
		return terms
	}
	return []string{q}
}

// BuildFilter validates the filter fields of in. defaultNamespace is used
// when in names no namespace.
func BuildFilter(in Input, defaultNamespace string) (vector.Filter, error) {
	f := vector.Filter{
		Building:  strings.TrimSpace(in.Building),
		Namespace: strings.TrimSpace(in.Namespace),
	}
	if f.Namespace == "" {
		f.Namespace = strings.TrimSpace(defaultNamespace)
	}

	if s := strings.TrimSpace(in.DateFrom); s != "" {
		ymd, err := shotdate.ParseYMD(s)
		if err != nil {
			return f, fmt.Errorf("date_from: %w", err)
		}
		f.FromYMD = ymd
	}
	if s := strings.TrimSpace(in.DateTo); s != "" {
		ymd, err := shotdate.ParseYMD(s)
		if err != nil {
			return f, fmt.Errorf("date_to: %w", err)
		}
		f.ToYMD = ymd
	}

	if f.FromYMD != 0 && f.ToYMD != 0 && f.FromYMD > f.ToYMD {
		return f, ErrInvalidRange
	}
	return f, nil
}

func topK(k int) (int, error) {
	if k == 0 {
		return DefaultTopK, nil
	}
	if k < 1 || k > MaxTopK {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
	}
	return k, nil
}

// Search runs a filtered similarity search for a text query, a stored
// image, or both.
func (s *Searcher) Search(ctx context.Context, in Input) (*Output, error) {
	k, err := topK(in.TopK)
	if err != nil {
		return nil, err
	}

	filter, err := BuildFilter(in, s.config.Namespace)
	if err != nil {
		return nil, err
	}

	queryVec, err := s.queryVector(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search request",
		zap.String("query", in.Query),
		zap.String("query_image_id", in.QueryImageID),
		zap.String("building", filter.Building),
		zap.String("namespace", filter.Namespace),
		zap.Int("from_ymd", filter.FromYMD),
		zap.Int("to_ymd", filter.ToYMD),
		zap.Int("top_k", k),
	)

	hits, err := s.config.VectorDriver.Query(ctx, queryVec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	hits = Rerank(hits, filter.Building)

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res, ok, err := s.hydrate(ctx, hit, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, res)
		if len(results) == k {
			break
		}
	}

	return &Output{
		Results:   results,
		Count:     len(results),
		Namespace: filter.Namespace,
	}, nil
}

// queryVector resolves the text vector, the image vector, or their mean.
func (s *Searcher) queryVector(ctx context.Context, in Input) ([]float32, error) {
	q := NormalizeQuery(in.Query)
	imageID := strings.TrimSpace(in.QueryImageID)

	var vecs [][]float32

	if q != "" {
		v, err := s.textVector(ctx, q)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}

	if imageID != "" {
		v, err := s.imageVector(ctx, imageID)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}

	if len(vecs) == 0 {
		return nil, ErrMissingQuery
	}

	mean, err := vector.Mean(vecs...)
	if err != nil {
		return nil, fmt.Errorf("combining query vectors: %w", err)
	}
	return mean, nil
}

func (s *Searcher) textVector(ctx context.Context, q string) ([]float32, error) {
	terms := ExpandQuery(q)
	embs := make([][]float32, 0, len(terms))
	for _, term := range terms {
		e, err := s.config.Embedder.Embed(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		embs = append(embs, e)
	}

	mean, err := vector.Mean(embs...)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return mean, nil
}

// imageVector returns the stored vector of a record, re-embedding its blob
// when the vector is missing.
func (s *Searcher) imageVector(ctx context.Context, id string) ([]float32, error) {
	rec, err := s.config.Storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	docs, err := s.config.VectorDriver.Get(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("failed to load query image vector: %w", err)
	}
	if len(docs) > 0 && len(docs[0].Embedding) > 0 {
		return docs[0].Embedding, nil
	}

	s.logger.Warn("query image has no vector, re-embedding", zap.String("id", id))

	data, err := s.config.Blobs.Get(ctx, rec.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load query image: %w", err)
	}
	v, err := s.config.Embedder.EmbedImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query image: %w", err)
	}
	return v, nil
}

// Rerank boosts hits in building and stable sorts by descending score.
func Rerank(hits []vector.QueryResult, building string) []vector.QueryResult {
	if building != "" {
		for i := range hits {
			if hits[i].Metadata.Building == building {
				hits[i].Score += BuildingBoost
			}
		}
	}
	slices.SortStableFunc(hits, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return hits
}

// hydrate loads the record behind a hit. ok is false when the hit has no
// record or the record does not satisfy the filter.
func (s *Searcher) hydrate(ctx context.Context, hit vector.QueryResult, filter vector.Filter) (Result, bool, error) {
	rec, err := s.config.Storage.Get(ctx, hit.ID)
	if storage.IsNotFound(err) {
		s.logger.Warn("vector has no record, skipping", zap.String("id", hit.ID))
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to load record %s: %w", hit.ID, err)
	}

	if !filter.Matches(vector.Metadata{
		Building:  rec.Building,
		ShotYMD:   rec.ShotYMD,
		Namespace: rec.Namespace,
	}) {
		s.logger.Debug("hit outside filter, skipping", zap.String("id", hit.ID))
		return Result{}, false, nil
	}

	imageURL, err := s.config.Blobs.URL(ctx, rec.StorageKey)
	if err != nil {
		s.logger.Warn("failed to resolve image url",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		imageURL = hit.Metadata.ImageURL
	}

	return Result{
		ID:       rec.ID,
		Score:    hit.Score,
		ImageURL: imageURL,
		Building: rec.Building,
		ShotDate: rec.ShotDate,
		Notes:    rec.Notes,
	}, true, nil
}
