package app_test

import (
	"context"
	"image/color"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/app"
	"github.com/papercomputeco/snaps/pkg/config"
	"github.com/papercomputeco/snaps/pkg/ingest"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

var _ = Describe("Stack", func() {
	var (
		ctx    context.Context
		tmpDir string
		cfg    *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "app-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		cfg = config.NewDefaultConfig()
		cfg.Storage.Provider = "memory"
		cfg.VectorStore.Provider = "memory"
		cfg.VectorStore.Namespace = "site-a"
		cfg.Embedding.Provider = "hash"
		cfg.Embedding.Dimensions = 64
		cfg.Blob.Root = filepath.Join(tmpDir, "media")
	})

	It("wires ingest and search end to end", func() {
		stack, err := app.New(ctx, cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stack.Close)

		res, err := stack.Ingester.Ingest(ctx, ingest.Upload{
			Filename: "a.png",
			Data:     testutils.PNG(color.RGBA{R: 200, A: 255}),
			Building: "Hall",
			ShotDate: "2023-07-12",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ImageURL).To(HavePrefix("http://localhost:8081/media/images/"))

		rec, err := stack.Storage.Get(ctx, res.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Namespace).To(Equal("site-a"))
		Expect(filepath.Join(cfg.Blob.Root, filepath.FromSlash(rec.StorageKey))).To(BeARegularFile())

		out, err := stack.Searcher.Search(ctx, search.Input{
			QueryImageID: res.ID,
			Building:     "Hall",
			DateFrom:     "2023-07-01",
			DateTo:       "2023-07-31",
			TopK:         5,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Results).NotTo(BeEmpty())
		Expect(out.Results[0].ID).To(Equal(res.ID))
	})

	It("builds an API server and a reindexer", func() {
		stack, err := app.New(ctx, cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stack.Close)

		server, err := stack.NewServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(server).NotTo(BeNil())

		r, err := stack.NewReindexer(2, 0)
		Expect(err).NotTo(HaveOccurred())
		report, err := r.Reconcile(ctx, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Records).To(BeZero())
	})

	DescribeTable("rejects bad configuration",
		func(mutate func(*config.Config), msg string) {
			mutate(cfg)
			_, err := app.New(ctx, cfg, nil)
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("bad presign expiry", func(c *config.Config) { c.Blob.PresignExpiry = "soon" }, "blob.presign_expiry"),
		Entry("bad cache ttl", func(c *config.Config) { c.Cache.TTL = "1 day" }, "cache.ttl"),
		Entry("unknown record store", func(c *config.Config) { c.Storage.Provider = "mongo" }, "unsupported storage provider"),
		Entry("unknown vector store", func(c *config.Config) { c.VectorStore.Provider = "faiss" }, "unsupported vector store provider"),
		Entry("unknown embedder", func(c *config.Config) { c.Embedding.Provider = "magic" }, "unsupported embedding provider"),
		Entry("unknown event stream", func(c *config.Config) { c.Events.Provider = "nats" }, "unsupported event stream provider"),
	)
})
