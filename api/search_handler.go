package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/papercomputeco/snaps/api/search"
)

// handleSearchEndpoint handles GET /api/search requests.
// Query parameters:
//   - q: free text query
//   - query_image_id: id of a stored image to search by
//   - building, date_from, date_to, namespace (optional): filters
//   - k (optional, default 10, max 100): number of results to return
//
// At least one of q and query_image_id is required.
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	// Verify search is configured
	if s.config.Searcher == nil {
		return unavailable(c, "search is not configured: vector driver and embedder are required")
	}

	input := apisearch.Input{
		Query:        c.Query("q"),
		QueryImageID: c.Query("query_image_id"),
		Building:     c.Query("building"),
		DateFrom:     c.Query("date_from"),
		DateTo:       c.Query("date_to"),
		Namespace:    c.Query("namespace"),
	}

	if v := c.Query("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return s.fail(c, apisearch.ErrInvalidTopK)
		}
		input.TopK = parsed
	}

	output, err := s.config.Searcher.Search(c.Context(), input)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(output)
}
