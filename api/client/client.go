// Package client is a Go client for the snaps HTTP API, used by the CLI
// commands that talk to a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/snaps/api"
	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/ingest"
)

// DefaultTimeout bounds a single API call. Uploads embed server side, so it
// matches the embedder timeout.
const DefaultTimeout = 120 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string

	// Uploaded lists images stored before a batch failed.
	Uploaded []ingest.Result
}

func (e *APIError) Error() string {
	return fmt.Sprintf("snaps API returned HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Metadata is the form metadata sent with an upload.
type Metadata struct {
	Building string
	ShotDate string
	Notes    string
}

// Client calls a snaps API server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a Client for the server at target, e.g. http://localhost:8081.
func New(target string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme must be http or https", target)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Upload sends a single image file with its metadata.
func (c *Client) Upload(ctx context.Context, path string, meta Metadata) (*ingest.Result, error) {
	body, contentType, err := multipartBody("file", []string{path}, meta)
	if err != nil {
		return nil, err
	}

	out := &ingest.Result{}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/images", nil), contentType, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadBatch sends several images sharing one set of metadata.
func (c *Client) UploadBatch(ctx context.Context, paths []string, meta Metadata) (*api.BatchResponse, error) {
	body, contentType, err := multipartBody("files", paths, meta)
	if err != nil {
		return nil, err
	}

	out := &api.BatchResponse{}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/images/batch", nil), contentType, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search runs GET /api/search.
func (c *Client) Search(ctx context.Context, in search.Input) (*search.Output, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", in.Query)
	set("query_image_id", in.QueryImageID)
	set("building", in.Building)
	set("date_from", in.DateFrom)
	set("date_to", in.DateTo)
	set("namespace", in.Namespace)
	if in.TopK > 0 {
		q.Set("k", strconv.Itoa(in.TopK))
	}

	out := &search.Output{}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/api/search", q), "", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one image record.
func (c *Client) Get(ctx context.Context, id string) (*api.ImageResponse, error) {
	out := &api.ImageResponse{}
	path := "/api/images/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, c.endpoint(path, nil), "", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches record store statistics.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	out := &api.StatsResponse{}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/api/stats", nil), "", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, target, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to snaps API at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var batch api.BatchErrorResponse
	if err := json.Unmarshal(data, &batch); err == nil && batch.Error != "" {
		return &APIError{StatusCode: status, Message: batch.Error, Uploaded: batch.Uploaded}
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

func multipartBody(field string, paths []string, meta Metadata) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", path, err)
		}

		part, err := w.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return nil, "", fmt.Errorf("creating form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("writing form file: %w", err)
		}
	}

	for k, v := range map[string]string{
		"building":  meta.Building,
		"shot_date": meta.ShotDate,
		"notes":     meta.Notes,
	} {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
