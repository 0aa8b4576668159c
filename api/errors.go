package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/ingest"
	"github.com/papercomputeco/snaps/pkg/storage"
)

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case ingest.IsValidation(err), search.IsInvalidInput(err):
		return fiber.StatusBadRequest
	case storage.IsNotFound(err), errors.Is(err, blob.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as a JSON error response.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func unavailable(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: msg})
}
