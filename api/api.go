package api

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/api/mcp"
	"github.com/papercomputeco/snaps/pkg/storage"
)

// Server is the API server for uploading and querying images
type Server struct {
	config Config
	storer storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with the ingester and searcher.
func NewServer(config Config, storer storage.Driver, logger *zap.Logger) (*Server, error) {
	if storer == nil {
		return nil, errors.New("storage driver is required")
	}
	if config.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config: config,
		storer: storer,
		logger: logger,
		app:    app,
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(config.AllowOrigins),
	}))

	app.Get("/ping", s.handlePing)
	app.Get("/media/*", s.handleMedia)

	app.Post("/api/images", s.handleUpload)
	app.Post("/api/images/batch", s.handleBatchUpload)
	app.Get("/api/images", s.handleListImages)
	app.Get("/api/images/:id", s.handleGetImage)
	app.Delete("/api/images/:id", s.handleDeleteImage)
	app.Get("/api/images/:id/thumbnail", s.handleThumbnail)
	app.Get("/api/search", s.handleSearchEndpoint)
	app.Get("/api/stats", s.handleStats)

	if config.EnableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Searcher: config.Searcher,
			Noop:     config.Searcher == nil,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

func allowOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

// errorHandler renders fiber errors (unknown routes, oversized bodies) in
// the same JSON shape as handler errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve runs the API server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", ln.Addr().String()),
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithContext shuts down the server, giving in-flight requests
// until ctx is done.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
