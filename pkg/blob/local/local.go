// Package local stores blobs on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/blob"
)

// MediaPrefix is the path the API serves local blobs under.
const MediaPrefix = "/media/"

// Store implements blob.Store on a directory tree.
type Store struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// Config holds the local store configuration.
type Config struct {
	// Root is the directory blobs are written under.
	Root string

	// BaseURL is prefixed to MediaPrefix when building blob URLs,
	// e.g. "http://localhost:8080". Empty yields host relative URLs.
	BaseURL string

	Logger *zap.Logger
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(c Config) (*Store, error) {
	if c.Root == "" {
		return nil, errors.New("local blob store requires a root directory")
	}
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	c.Logger.Debug("local blob store ready", zap.String("root", c.Root))
	return &Store{
		root:    c.Root,
		baseURL: strings.TrimSuffix(c.BaseURL, "/"),
		logger:  c.Logger,
	}, nil
}

func (s *Store) path(key string) (string, error) {
	cleaned, err := blob.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes data to a temp file and renames it into place.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".blob-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storing blob %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking blob %s: %w", key, err)
	}
}

// URL returns <base_url>/media/<key>.
func (s *Store) URL(_ context.Context, key string) (string, error) {
	cleaned, err := blob.CleanKey(key)
	if err != nil {
		return "", err
	}
	escaped := (&url.URL{Path: cleaned}).EscapedPath()
	return s.baseURL + MediaPrefix + escaped, nil
}

var _ blob.Store = (*Store)(nil)
