package ingest_test

import (
	"context"
	"image/color"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/blob"
	"github.com/papercomputeco/snaps/pkg/eventstream"
	"github.com/papercomputeco/snaps/pkg/ingest"
	"github.com/papercomputeco/snaps/pkg/storage"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
	"github.com/papercomputeco/snaps/pkg/vector"
)

var _ = Describe("Ingester", func() {
	var (
		ctx       context.Context
		records   *testutils.MockStorageDriver
		vectors   *testutils.MockVectorDriver
		embedder  *testutils.MockEmbedder
		blobs     *testutils.MemoryBlobStore
		publisher *testutils.MockPublisher
		ingester  *ingest.Ingester
		red       []byte
	)

	BeforeEach(func() {
		ctx = context.Background()
		records = testutils.NewMockStorageDriver()
		vectors = testutils.NewMockVectorDriver(8)
		embedder = testutils.NewMockEmbedder(8)
		blobs = testutils.NewMemoryBlobStore()
		publisher = testutils.NewMockPublisher()
		red = testutils.PNG(color.RGBA{R: 255, A: 255})

		var err error
		ingester, err = ingest.NewIngester(&ingest.Config{
			Storage:      records,
			VectorDriver: vectors,
			Embedder:     embedder,
			Blobs:        blobs,
			Publisher:    publisher,
			Namespace:    "site-a",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	valid := func() ingest.Upload {
		return ingest.Upload{
			Filename: "a.png",
			Data:     red,
			Building: "Hall",
			ShotDate: "2023-07-12",
			Notes:    " east wing ",
		}
	}

	expectNoSideEffects := func() {
		n, err := records.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
		Expect(vectors.Count()).To(BeZero())
		Expect(blobs.Keys()).To(BeEmpty())
	}

	It("requires every collaborator", func() {
		_, err := ingest.NewIngester(&ingest.Config{Storage: records})
		Expect(err).To(HaveOccurred())
	})

	Describe("Ingest", func() {
		It("stores exactly one record, one vector and one blob", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ID).NotTo(BeEmpty())
			Expect(res.ImageURL).To(Equal("/media/images/" + res.ID + ".png"))

			rec, err := records.Get(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Building).To(Equal("Hall"))
			Expect(rec.ShotDate).To(Equal("2023-07-12"))
			Expect(rec.ShotYMD).To(Equal(20230712))
			Expect(rec.Notes).To(Equal("east wing"))
			Expect(rec.ContentType).To(Equal("image/png"))
			Expect(rec.StorageKey).To(Equal("images/" + res.ID + ".png"))
			Expect(rec.Checksum).To(HaveLen(64))
			Expect(rec.Namespace).To(Equal("site-a"))

			docs, err := vectors.Get(ctx, []string{res.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding).To(HaveLen(8))
			Expect(docs[0].Metadata).To(Equal(vector.Metadata{
				Building:  "Hall",
				ShotDate:  "2023-07-12",
				ShotYMD:   20230712,
				ImageURL:  res.ImageURL,
				Notes:     "east wing",
				Namespace: "site-a",
			}))

			Expect(blobs.Keys()).To(ConsistOf(rec.StorageKey))
		})

		It("publishes an ingested event", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeImageIngested))
			Expect(events[0].Image.ID).To(Equal(res.ID))
			Expect(events[0].Image.ShotYMD).To(Equal(20230712))
		})

		It("does not fail when publishing fails", func() {
			publisher.Fail = true
			_, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("rejects invalid uploads before any side effect",
			func(mutate func(*ingest.Upload), want error) {
				u := valid()
				mutate(&u)

				_, err := ingester.Ingest(ctx, u)
				Expect(err).To(MatchError(want))
				Expect(ingest.IsValidation(err)).To(BeTrue())
				Expect(embedder.ImageCalls()).To(BeZero())
				expectNoSideEffects()
			},
			Entry("missing file", func(u *ingest.Upload) { u.Data = nil }, ingest.ErrMissingField),
			Entry("missing building", func(u *ingest.Upload) { u.Building = "  " }, ingest.ErrMissingField),
			Entry("missing shot date", func(u *ingest.Upload) { u.ShotDate = "" }, ingest.ErrMissingField),
			Entry("malformed shot date", func(u *ingest.Upload) { u.ShotDate = "12/07/2023" }, ingest.ErrInvalidShotDate),
			Entry("impossible shot date", func(u *ingest.Upload) { u.ShotDate = "2023-02-30" }, ingest.ErrInvalidShotDate),
			Entry("long building", func(u *ingest.Upload) { u.Building = strings.Repeat("b", 129) }, ingest.ErrInvalidField),
			Entry("non-image bytes", func(u *ingest.Upload) { u.Data = []byte("hello, world") }, ingest.ErrUnsupportedImage),
		)

		It("accepts a building of exactly the maximum length", func() {
			u := valid()
			u.Building = strings.Repeat("é", ingest.MaxBuildingLength)
			_, err := ingester.Ingest(ctx, u)
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns an embedding error without storing anything", func() {
			embedder.Err = vector.ErrEmbedding
			_, err := ingester.Ingest(ctx, valid())
			Expect(err).To(MatchError(vector.ErrEmbedding))
			Expect(ingest.IsValidation(err)).To(BeFalse())
			expectNoSideEffects()
		})

		It("returns a blob error without storing anything", func() {
			blobs.FailPut = true
			_, err := ingester.Ingest(ctx, valid())
			Expect(err).To(HaveOccurred())
			expectNoSideEffects()
		})

		It("removes the blob when the record insert fails", func() {
			records.FailCreate = true
			_, err := ingester.Ingest(ctx, valid())
			Expect(err).To(MatchError(testutils.ErrMockStorage))
			expectNoSideEffects()
		})

		It("removes the record and blob when the vector upsert fails", func() {
			vectors.FailAdd = true
			_, err := ingester.Ingest(ctx, valid())
			Expect(err).To(MatchError(testutils.ErrMockVector))
			expectNoSideEffects()
			Expect(publisher.Events()).To(BeEmpty())
		})
	})

	Describe("IngestBatch", func() {
		It("stores every upload in input order", func() {
			second := valid()
			second.Data = testutils.PNG(color.RGBA{G: 255, A: 255})

			results, err := ingester.IngestBatch(ctx, []ingest.Upload{valid(), second})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).NotTo(Equal(results[1].ID))

			n, err := records.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(vectors.Count()).To(Equal(2))
		})

		It("rejects the whole batch when one upload is invalid", func() {
			bad := valid()
			bad.Building = ""

			_, err := ingester.IngestBatch(ctx, []ingest.Upload{valid(), bad})
			Expect(err).To(MatchError(ingest.ErrMissingField))
			Expect(err.Error()).To(ContainSubstring("file 1"))
			Expect(embedder.ImageCalls()).To(BeZero())
			expectNoSideEffects()
		})

		It("rejects an empty batch", func() {
			_, err := ingester.IngestBatch(ctx, nil)
			Expect(err).To(MatchError(ingest.ErrMissingField))
		})

		It("returns results stored before a failure", func() {
			results, err := ingester.IngestBatch(ctx, []ingest.Upload{valid()})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			vectors.FailAdd = true
			results, err = ingester.IngestBatch(ctx, []ingest.Upload{valid(), valid()})
			Expect(err).To(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("removes the vector, the record and the blob", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())

			Expect(ingester.Delete(ctx, res.ID)).To(Succeed())
			expectNoSideEffects()

			events := publisher.Events()
			Expect(events).To(HaveLen(2))
			Expect(events[1].EventType).To(Equal(eventstream.EventTypeImageDeleted))
		})

		It("returns NotFoundError for unknown ids", func() {
			err := ingester.Delete(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("keeps the record when the vector delete fails", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())

			vectors.FailDelete = true
			Expect(ingester.Delete(ctx, res.ID)).To(MatchError(testutils.ErrMockVector))

			_, err = records.Get(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Reindex", func() {
		It("restores a lost vector from the stored blob", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())

			docs, err := vectors.Get(ctx, []string{res.ID})
			Expect(err).NotTo(HaveOccurred())
			original := docs[0].Embedding

			Expect(vectors.Delete(ctx, []string{res.ID})).To(Succeed())

			rec, err := records.Get(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ingester.Reindex(ctx, rec)).To(Succeed())

			docs, err = vectors.Get(ctx, []string{res.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding).To(Equal(original))
		})

		It("fails when the blob is gone", func() {
			res, err := ingester.Ingest(ctx, valid())
			Expect(err).NotTo(HaveOccurred())

			rec, err := records.Get(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(blobs.Delete(ctx, rec.StorageKey)).To(Succeed())

			Expect(ingester.Reindex(ctx, rec)).To(MatchError(blob.ErrNotFound))
		})
	})
})
