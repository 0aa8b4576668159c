package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/imageutil"
	"github.com/papercomputeco/snaps/pkg/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxThumbnailSize = 1024
)

// ImageResponse is a stored record with its resolved URL.
type ImageResponse struct {
	storage.Record
	ImageURL string `json:"image_url"`
}

// ListResponse is a page of stored records.
type ListResponse struct {
	Images []ImageResponse `json:"images"`
	Count  int             `json:"count"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// StatsResponse summarizes the record store.
type StatsResponse struct {
	Records   int                     `json:"records"`
	Buildings []storage.BuildingCount `json:"buildings"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns record counts overall and per building.
func (s *Server) handleStats(c *fiber.Ctx) error {
	ctx := c.Context()

	n, err := s.storer.Count(ctx)
	if err != nil {
		return s.fail(c, err)
	}

	buildings, err := s.storer.Buildings(ctx)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(StatsResponse{Records: n, Buildings: buildings})
}

// handleListImages returns stored records newest first.
// Query parameters:
//   - building (optional): exact building match
//   - limit (optional, default 50, max 500)
//   - offset (optional, default 0)
func (s *Server) handleListImages(c *fiber.Ctx) error {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = min(parsed, maxListLimit)
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return badRequest(c, "offset must be a non-negative integer")
		}
		offset = parsed
	}

	recs, err := s.storer.List(c.Context(), storage.ListOptions{
		Building: c.Query("building"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return s.fail(c, err)
	}

	images := make([]ImageResponse, 0, len(recs))
	for _, rec := range recs {
		images = append(images, s.imageResponse(c.Context(), rec))
	}

	return c.JSON(ListResponse{
		Images: images,
		Count:  len(images),
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetImage returns a single record by id.
func (s *Server) handleGetImage(c *fiber.Ctx) error {
	rec, err := s.storer.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.imageResponse(c.Context(), rec))
}

// handleDeleteImage removes an image from every store.
func (s *Server) handleDeleteImage(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return unavailable(c, "ingestion is not configured")
	}
	if err := s.config.Ingester.Delete(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleThumbnail returns a JPEG thumbnail of a stored image.
// Query parameters:
//   - size (optional, default 256): longest side in pixels
func (s *Server) handleThumbnail(c *fiber.Ctx) error {
	size := imageutil.DefaultThumbnailSize
	if v := c.Query("size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxThumbnailSize {
			return badRequest(c, "size must be between 1 and 1024")
		}
		size = parsed
	}

	rec, err := s.storer.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	data, err := s.config.Blobs.Get(c.Context(), rec.StorageKey)
	if err != nil {
		return s.fail(c, err)
	}

	thumb, err := imageutil.Thumbnail(data, size)
	if err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(thumb)
}

// handleMedia streams a blob by key.
func (s *Server) handleMedia(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return badRequest(c, "blob key required")
	}

	data, err := s.config.Blobs.Get(c.Context(), key)
	if err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, imageutil.Sniff(data))
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(data)
}

func (s *Server) imageResponse(ctx context.Context, rec *storage.Record) ImageResponse {
	url, err := s.config.Blobs.URL(ctx, rec.StorageKey)
	if err != nil {
		s.logger.Warn("failed to resolve image url",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
	}
	return ImageResponse{Record: *rec, ImageURL: url}
}
