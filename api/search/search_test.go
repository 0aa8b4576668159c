package search_test

import (
	"context"
	"image/color"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/api/search"
	"github.com/papercomputeco/snaps/pkg/ingest"
	"github.com/papercomputeco/snaps/pkg/shotdate"
	"github.com/papercomputeco/snaps/pkg/storage"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
	"github.com/papercomputeco/snaps/pkg/vector"
)

var _ = Describe("Search", func() {
	var (
		ctx      context.Context
		records  *testutils.MockStorageDriver
		vectors  *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		blobs    *testutils.MemoryBlobStore
		ingester *ingest.Ingester
		searcher *search.Searcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		records = testutils.NewMockStorageDriver()
		vectors = testutils.NewMockVectorDriver(16)
		embedder = testutils.NewMockEmbedder(16)
		blobs = testutils.NewMemoryBlobStore()

		var err error
		ingester, err = ingest.NewIngester(&ingest.Config{
			Storage:      records,
			VectorDriver: vectors,
			Embedder:     embedder,
			Blobs:        blobs,
		})
		Expect(err).NotTo(HaveOccurred())

		searcher, err = search.NewSearcher(&search.Config{
			Embedder:     embedder,
			VectorDriver: vectors,
			Storage:      records,
			Blobs:        blobs,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	upload := func(building, date string, c color.Color) string {
		res, err := ingester.Ingest(ctx, ingest.Upload{
			Filename: "img.png",
			Data:     testutils.PNG(c),
			Building: building,
			ShotDate: date,
		})
		Expect(err).NotTo(HaveOccurred())
		return res.ID
	}

	seed := func() {
		upload("Hall", "2023-07-12", color.RGBA{R: 255, A: 255})
		upload("Hall", "2023-08-02", color.RGBA{G: 255, A: 255})
		upload("Library", "2023-07-20", color.RGBA{B: 255, A: 255})
		upload("Library", "2024-01-05", color.RGBA{R: 128, G: 128, A: 255})
		upload("Gym", "2023-07-15", color.RGBA{R: 10, B: 200, A: 255})
	}

	expectDescending := func(results []search.Result) {
		for i := 1; i < len(results); i++ {
			Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
		}
	}

	Describe("input validation", func() {
		It("requires q or query_image_id", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "   "})
			Expect(err).To(MatchError(search.ErrMissingQuery))
			Expect(search.IsInvalidInput(err)).To(BeTrue())
		})

		DescribeTable("rejects k outside 1..100",
			func(k int) {
				_, err := searcher.Search(ctx, search.Input{Query: "crane", TopK: k})
				Expect(err).To(MatchError(search.ErrInvalidTopK))
			},
			Entry("negative", -1),
			Entry("too large", 101),
		)

		It("rejects malformed dates", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "crane", DateFrom: "July"})
			Expect(err).To(MatchError(shotdate.ErrInvalid))
			Expect(search.IsInvalidInput(err)).To(BeTrue())
		})

		It("rejects inverted ranges", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "crane", DateFrom: "2023-08-01", DateTo: "2023-07-01"})
			Expect(err).To(MatchError(search.ErrInvalidRange))
		})

		It("does not embed anything for invalid input", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "crane", TopK: 500})
			Expect(err).To(HaveOccurred())
			Expect(embedder.TextCalls()).To(BeZero())
		})
	})

	Describe("text queries", func() {
		BeforeEach(seed)

		It("returns empty results for an empty store", func() {
			Expect(vectors.Reset(ctx)).To(Succeed())
			out, err := searcher.Search(ctx, search.Input{Query: "anything"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(BeZero())
			Expect(out.Results).To(BeEmpty())
		})

		It("returns at most k results in non-increasing score order", func() {
			out, err := searcher.Search(ctx, search.Input{Query: "scaffolding", TopK: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(3))
			Expect(out.Count).To(Equal(3))
			expectDescending(out.Results)
		})

		It("defaults k to 10", func() {
			out, err := searcher.Search(ctx, search.Input{Query: "scaffolding"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(5))
		})

		It("only returns the requested building", func() {
			out, err := searcher.Search(ctx, search.Input{Query: "facade", Building: "Hall"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(2))
			for _, r := range out.Results {
				Expect(r.Building).To(Equal("Hall"))
			}
		})

		It("only returns shots within the inclusive date range", func() {
			out, err := searcher.Search(ctx, search.Input{
				Query:    "facade",
				DateFrom: "2023-07-12",
				DateTo:   "2023-07-20",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(3))
			for _, r := range out.Results {
				Expect(r.ShotDate >= "2023-07-12" && r.ShotDate <= "2023-07-20").To(BeTrue())
			}
		})

		It("finds a Hall image shot in July", func() {
			out, err := searcher.Search(ctx, search.Input{
				Query:    "facade",
				Building: "Hall",
				DateFrom: "2023-07-01",
				DateTo:   "2023-07-31",
				TopK:     5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].ShotDate).To(Equal("2023-07-12"))
			Expect(out.Results[0].ImageURL).To(HavePrefix("/media/images/"))
		})

		It("embeds every synonym of a known term", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "  Excavator "})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.TextCalls()).To(Equal(4))
		})

		It("corrects misspelled domain terms before expanding them", func() {
			_, err := searcher.Search(ctx, search.Input{Query: "Excavater"})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Texts()).To(Equal([]string{
				"excavator", "digger", "backhoe", "construction excavator",
			}))
		})
	})

	Describe("image queries", func() {
		It("ranks the query image first", func() {
			seed()
			id := upload("Hall", "2023-07-30", color.RGBA{R: 40, G: 200, B: 90, A: 255})

			out, err := searcher.Search(ctx, search.Input{QueryImageID: id, TopK: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).NotTo(BeEmpty())
			Expect(out.Results[0].ID).To(Equal(id))
			Expect(out.Results[0].Score).To(BeNumerically("~", 1.0, 1e-4))
		})

		It("returns NotFoundError for unknown images", func() {
			_, err := searcher.Search(ctx, search.Input{QueryImageID: "missing"})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("re-embeds the blob when the vector is missing", func() {
			id := upload("Hall", "2023-07-12", color.RGBA{R: 255, A: 255})
			Expect(vectors.Delete(ctx, []string{id})).To(Succeed())
			other := upload("Hall", "2023-07-13", color.RGBA{R: 255, A: 255})

			out, err := searcher.Search(ctx, search.Input{QueryImageID: id})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].ID).To(Equal(other))
		})

		It("averages text and image vectors", func() {
			id := upload("Hall", "2023-07-12", color.RGBA{R: 255, A: 255})
			embedder.Embeddings["crane"] = make([]float32, 16)
			embedder.Embeddings["crane"][0] = 1

			out, err := searcher.Search(ctx, search.Input{Query: "crane", QueryImageID: id})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].Score).To(BeNumerically("<", 1.0))
		})
	})

	Describe("hydration", func() {
		It("skips hits without a record", func() {
			vectors.Results = []vector.QueryResult{
				{Document: vector.Document{ID: "ghost", Metadata: vector.Metadata{Building: "Hall"}}, Score: 0.9},
			}
			out, err := searcher.Search(ctx, search.Input{Query: "crane"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(BeEmpty())
		})

		It("skips hits whose record is outside the filter", func() {
			id := upload("Library", "2023-07-12", color.RGBA{R: 255, A: 255})
			vectors.Results = []vector.QueryResult{
				{Document: vector.Document{ID: id, Metadata: vector.Metadata{Building: "Hall"}}, Score: 0.9},
			}
			out, err := searcher.Search(ctx, search.Input{Query: "crane", Building: "Hall"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).To(BeEmpty())
		})

		It("echoes the namespace", func() {
			out, err := searcher.Search(ctx, search.Input{Query: "crane", Namespace: "site-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Namespace).To(Equal("site-a"))
		})

		Describe("default namespace", func() {
			var scoped *search.Searcher

			ingestInto := func(namespace string, c color.Color) string {
				in, err := ingest.NewIngester(&ingest.Config{
					Storage:      records,
					VectorDriver: vectors,
					Embedder:     embedder,
					Blobs:        blobs,
					Namespace:    namespace,
				})
				Expect(err).NotTo(HaveOccurred())
				res, err := in.Ingest(ctx, ingest.Upload{
					Filename: "img.png",
					Data:     testutils.PNG(c),
					Building: "Hall",
					ShotDate: "2023-07-12",
				})
				Expect(err).NotTo(HaveOccurred())
				return res.ID
			}

			BeforeEach(func() {
				var err error
				scoped, err = search.NewSearcher(&search.Config{
					Embedder:     embedder,
					VectorDriver: vectors,
					Storage:      records,
					Blobs:        blobs,
					Namespace:    "tenant-a",
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("searches the configured namespace when the request names none", func() {
				a := ingestInto("tenant-a", color.RGBA{R: 255, A: 255})
				ingestInto("tenant-b", color.RGBA{G: 255, A: 255})

				out, err := scoped.Search(ctx, search.Input{Query: "hall", Building: "Hall"})
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Namespace).To(Equal("tenant-a"))
				Expect(out.Results).To(HaveLen(1))
				Expect(out.Results[0].ID).To(Equal(a))
			})

			It("lets the request override the configured namespace", func() {
				ingestInto("tenant-a", color.RGBA{R: 255, A: 255})
				b := ingestInto("tenant-b", color.RGBA{G: 255, A: 255})

				out, err := scoped.Search(ctx, search.Input{Query: "hall", Namespace: "tenant-b"})
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Namespace).To(Equal("tenant-b"))
				Expect(out.Results).To(HaveLen(1))
				Expect(out.Results[0].ID).To(Equal(b))
			})
		})

		It("wraps vector store failures", func() {
			vectors.FailQuery = true
			_, err := searcher.Search(ctx, search.Input{Query: "crane"})
			Expect(err).To(MatchError(testutils.ErrMockVector))
			Expect(search.IsInvalidInput(err)).To(BeFalse())
		})
	})

	Describe("Rerank", func() {
		It("boosts matching buildings and keeps ties stable", func() {
			hits := []vector.QueryResult{
				{Document: vector.Document{ID: "a", Metadata: vector.Metadata{Building: "Gym"}}, Score: 0.50},
				{Document: vector.Document{ID: "b", Metadata: vector.Metadata{Building: "Hall"}}, Score: 0.49},
				{Document: vector.Document{ID: "c", Metadata: vector.Metadata{Building: "Gym"}}, Score: 0.50},
			}
			out := search.Rerank(hits, "Hall")
			Expect(out[0].ID).To(Equal("b"))
			Expect(out[0].Score).To(BeNumerically("~", 0.51, 1e-6))
			Expect(out[1].ID).To(Equal("a"))
			Expect(out[2].ID).To(Equal("c"))
		})

		It("only sorts without a building", func() {
			hits := []vector.QueryResult{
				{Document: vector.Document{ID: "a"}, Score: 0.1},
				{Document: vector.Document{ID: "b"}, Score: 0.9},
			}
			out := search.Rerank(hits, "")
			Expect(out[0].ID).To(Equal("b"))
			Expect(out[0].Score).To(Equal(float32(0.9)))
		})
	})

	Describe("NormalizeQuery and ExpandQuery", func() {
		It("collapses whitespace and case", func() {
			Expect(search.NormalizeQuery("  Tower   CRANE\t")).To(Equal("tower crane"))
		})

		It("corrects each word and leaves unknown words alone", func() {
			Expect(search.NormalizeQuery("tower crain")).To(Equal("tower crane"))
			Expect(search.NormalizeQuery("brikc wall")).To(Equal("brick wall"))
			Expect(search.NormalizeQuery("scaffolding")).To(Equal("scaffolding"))
		})

		It("expands known terms", func() {
			Expect(search.ExpandQuery("bulldozer")).To(Equal([]string{"bulldozer", "dozer"}))
			Expect(search.ExpandQuery("scaffold")).To(Equal([]string{"scaffold"}))
		})
	})
})

var _ = DescribeTable("CorrectWord",
	func(in, want string) {
		Expect(search.CorrectWord(in)).To(Equal(want))
	},
	Entry("one substitution", "excavater", "excavator"),
	Entry("one deletion", "bulldoer", "bulldozer"),
	Entry("transposition", "condiut", "conduit"),
	Entry("known word", "resistor", "resistor"),
	Entry("unknown word", "facade", "facade"),
	Entry("short word", "cab", "cab"),
)
