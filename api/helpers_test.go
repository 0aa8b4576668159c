package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/ingest"
	snapslogger "github.com/papercomputeco/snaps/pkg/logger"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

// harness wires a Server over in-memory collaborators.
type harness struct {
	server    *Server
	records   *testutils.MockStorageDriver
	vectors   *testutils.MockVectorDriver
	embedder  *testutils.MockEmbedder
	blobs     *testutils.MemoryBlobStore
	publisher *testutils.MockPublisher
}

func newHarness(mutate func(*Config)) *harness {
	h := &harness{
		records:   testutils.NewMockStorageDriver(),
		vectors:   testutils.NewMockVectorDriver(8),
		embedder:  testutils.NewMockEmbedder(8),
		blobs:     testutils.NewMemoryBlobStore(),
		publisher: testutils.NewMockPublisher(),
	}

	ingester, err := ingest.NewIngester(&ingest.Config{
		Storage:      h.records,
		VectorDriver: h.vectors,
		Embedder:     h.embedder,
		Blobs:        h.blobs,
		Publisher:    h.publisher,
		Namespace:    "default",
	})
	Expect(err).NotTo(HaveOccurred())

	searcher, err := apisearch.NewSearcher(&apisearch.Config{
		Embedder:     h.embedder,
		VectorDriver: h.vectors,
		Storage:      h.records,
		Blobs:        h.blobs,
	})
	Expect(err).NotTo(HaveOccurred())

	config := Config{
		ListenAddr: ":0",
		Ingester:   ingester,
		Searcher:   searcher,
		Blobs:      h.blobs,
		EnableMCP:  true,
	}
	if mutate != nil {
		mutate(&config)
	}

	h.server, err = NewServer(config, h.records, snapslogger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return h
}

func (h *harness) do(req *http.Request) (*http.Response, []byte) {
	resp, err := h.server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, body
}

func (h *harness) get(path string) (*http.Response, []byte) {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	Expect(err).NotTo(HaveOccurred())
	return h.do(req)
}

// upload stores an image through the API and returns its id.
func (h *harness) upload(data []byte, building, shotDate string) string {
	req := multipartRequest("/api/images", map[string][]string{
		"building":  {building},
		"shot_date": {shotDate},
	}, "file", [][]byte{data})

	resp, body := h.do(req)
	Expect(resp.StatusCode).To(Equal(http.StatusCreated), string(body))

	var res ingest.Result
	Expect(json.Unmarshal(body, &res)).To(Succeed())
	return res.ID
}

func multipartRequest(path string, fields map[string][]string, fileField string, files [][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, values := range fields {
		for _, v := range values {
			Expect(w.WriteField(name, v)).To(Succeed())
		}
	}
	for i, data := range files {
		part, err := w.CreateFormFile(fileField, "image"+string(rune('a'+i))+".png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(w.Close()).To(Succeed())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(body []byte) string {
	var e ErrorResponse
	ExpectWithOffset(1, json.Unmarshal(body, &e)).To(Succeed(), string(body))
	return e.Error
}
