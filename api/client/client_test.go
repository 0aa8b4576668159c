package client_test

import (
	"context"
	"image/color"
	"net"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/api/client"
	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/config"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		tmpDir string
		c      *client.Client
	)

	writeImage := func(name string, col color.Color) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, testutils.PNG(col), 0o600)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "client-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		target := "http://" + ln.Addr().String()

		cfg := config.NewDefaultConfig()
		cfg.Storage.Provider = "memory"
		cfg.VectorStore.Provider = "memory"
		cfg.Embedding.Dimensions = 32
		cfg.Blob.Root = filepath.Join(tmpDir, "media")
		cfg.Blob.BaseURL = target

		stack, err := app.New(ctx, cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stack.Close)

		server, err := stack.NewServer()
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = server.Serve(ln) }()
		DeferCleanup(server.Shutdown)

		c, err = client.New(target)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects targets without an http scheme", func() {
		_, err := client.New("localhost:8081")
		Expect(err).To(HaveOccurred())
	})

	It("uploads, fetches and searches an image", func() {
		res, err := c.Upload(ctx, writeImage("a.png", color.RGBA{R: 220, A: 255}), client.Metadata{
			Building: "Hall",
			ShotDate: "2023-07-12",
			Notes:    "east facade",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ID).NotTo(BeEmpty())

		img, err := c.Get(ctx, res.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Building).To(Equal("Hall"))
		Expect(img.Notes).To(Equal("east facade"))
		Expect(img.ImageURL).To(Equal(res.ImageURL))

		out, err := c.Search(ctx, search.Input{
			QueryImageID: res.ID,
			Building:     "Hall",
			DateFrom:     "2023-07-01",
			DateTo:       "2023-07-31",
			TopK:         5,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Results).NotTo(BeEmpty())
		Expect(out.Results[0].ID).To(Equal(res.ID))

		resp, err := http.Get(res.ImageURL)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("uploads a batch", func() {
		out, err := c.UploadBatch(ctx, []string{
			writeImage("a.png", color.RGBA{R: 255, A: 255}),
			writeImage("b.png", color.RGBA{B: 255, A: 255}),
		}, client.Metadata{Building: "Annex", ShotDate: "2024-01-02"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Uploaded).To(HaveLen(2))

		stats, err := c.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Records).To(Equal(2))
	})

	It("surfaces API errors", func() {
		_, err := c.Upload(ctx, writeImage("a.png", color.White), client.Metadata{ShotDate: "2023-07-12"})
		var apiErr *client.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(err.(*client.APIError).StatusCode).To(Equal(http.StatusBadRequest))
		Expect(err.Error()).To(ContainSubstring("building"))

		_, err = c.Get(ctx, "missing")
		Expect(client.IsNotFound(err)).To(BeTrue())

		_, err = c.Search(ctx, search.Input{})
		Expect(err).To(MatchError(ContainSubstring("provide q or query_image_id")))
	})

	It("fails when a file cannot be read", func() {
		_, err := c.Upload(ctx, filepath.Join(tmpDir, "nope.png"), client.Metadata{Building: "B", ShotDate: "2023-01-01"})
		Expect(err).To(MatchError(ContainSubstring("reading")))
	})
})
