package api

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/snaps/pkg/ingest"
)

// BatchResponse is the body of a successful batch upload.
type BatchResponse struct {
	Uploaded  []ingest.Result `json:"uploaded"`
	Namespace string          `json:"namespace"`
}

// BatchErrorResponse reports a failed batch with the images stored before
// the failure.
type BatchErrorResponse struct {
	Error    string          `json:"error"`
	Uploaded []ingest.Result `json:"uploaded"`
}

// handleUpload handles POST /api/images.
// Multipart fields:
//   - file (required): the image
//   - building (required)
//   - shot_date (required): YYYY-MM-DD
//   - notes (optional)
func (s *Server) handleUpload(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return unavailable(c, "ingestion is not configured")
	}

	u := ingest.Upload{
		Building: c.FormValue("building"),
		ShotDate: c.FormValue("shot_date"),
		Notes:    c.FormValue("notes"),
	}

	// A missing file is reported by the ingester along with the other
	// required fields.
	if fh, err := c.FormFile("file"); err == nil {
		data, err := readFile(fh)
		if err != nil {
			return s.fail(c, err)
		}
		u.Filename = fh.Filename
		u.Data = data
	}

	res, err := s.config.Ingester.Ingest(c.Context(), u)
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleBatchUpload handles POST /api/images/batch.
// Multipart fields:
//   - files (required, 1..N): the images
//   - building, shot_date, notes: given once for every file, or once per file
func (s *Server) handleBatchUpload(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return unavailable(c, "ingestion is not configured")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return badRequest(c, "missing required field: files")
	}

	buildings, err := perFile(form.Value["building"], len(files), "building")
	if err != nil {
		return badRequest(c, err.Error())
	}
	dates, err := perFile(form.Value["shot_date"], len(files), "shot_date")
	if err != nil {
		return badRequest(c, err.Error())
	}
	notes, err := perFile(form.Value["notes"], len(files), "notes")
	if err != nil {
		return badRequest(c, err.Error())
	}

	uploads := make([]ingest.Upload, len(files))
	for i, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return s.fail(c, err)
		}
		uploads[i] = ingest.Upload{
			Filename: fh.Filename,
			Data:     data,
			Building: buildings[i],
			ShotDate: dates[i],
			Notes:    notes[i],
		}
	}

	results, err := s.config.Ingester.IngestBatch(c.Context(), uploads)
	if err != nil {
		if len(results) > 0 {
			return c.Status(statusFor(err)).JSON(BatchErrorResponse{
				Error:    err.Error(),
				Uploaded: results,
			})
		}
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(BatchResponse{
		Uploaded:  results,
		Namespace: s.config.Ingester.Namespace(),
	})
}

// perFile spreads a form value over n files. Zero values yield blanks, one
// value is shared and n values map one to one.
func perFile(values []string, n int, field string) ([]string, error) {
	out := make([]string, n)
	switch len(values) {
	case 0:
	case 1:
		for i := range out {
			out[i] = values[0]
		}
	case n:
		copy(out, values)
	default:
		return nil, fmt.Errorf("%s must be given once or once per file (%d files, %d values)", field, n, len(values))
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	return data, nil
}
