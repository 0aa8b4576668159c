package inmemory_test

import (
	"context"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/vector"
	"github.com/papercomputeco/snaps/pkg/vector/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	doc := func(id, building string, ymd int, emb ...float32) vector.Document {
		return vector.Document{
			ID:        id,
			Embedding: emb,
			Metadata:  vector.Metadata{Building: building, ShotYMD: ymd},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver(3, zap.NewNop())
		Expect(driver.Add(ctx, []vector.Document{
			doc("a", "Hall", 20230712, 1, 0, 0),
			doc("b", "Hall", 20230801, 0.9, 0.1, 0),
			doc("c", "Annex", 20230715, 0, 1, 0),
			doc("d", "Hall", 20230705, 0, 0, 1),
		})).To(Succeed())
	})

	Describe("Interface compliance", func() {
		It("implements vector.Driver", func() {
			var _ vector.Driver = (*inmemory.Driver)(nil)
		})
	})

	Describe("Add", func() {
		It("rejects vectors with the wrong dimension", func() {
			err := driver.Add(ctx, []vector.Document{doc("x", "Hall", 0, 1, 2)})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("replaces documents with the same ID", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("a", "Annex", 20240101, 0, 1, 0)})).To(Succeed())
			docs, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Metadata.Building).To(Equal("Annex"))
			Expect(driver.Count()).To(Equal(4))
		})
	})

	Describe("Get", func() {
		It("returns copies of the stored embeddings", func() {
			docs, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			want := slices.Clone(docs[0].Embedding)

			docs[0].Embedding[0] = 42

			again, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(again[0].Embedding).To(Equal(want))
		})
	})

	Describe("Query", func() {
		It("returns results in descending score order", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0}, 10, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
			Expect(results[0].ID).To(Equal("a"))
			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
		})

		It("limits results to topK", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0}, 2, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("applies building and date filters", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0}, 10, vector.Filter{
				Building: "Hall",
				FromYMD:  20230701,
				ToYMD:    20230731,
			})
			Expect(err).NotTo(HaveOccurred())

			ids := []string{}
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(ConsistOf("a", "d"))
		})
	})

	Describe("Delete and Reset", func() {
		It("removes documents by ID", func() {
			Expect(driver.Delete(ctx, []string{"a", "missing"})).To(Succeed())
			docs, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("drops everything on reset", func() {
			Expect(driver.Reset(ctx)).To(Succeed())
			Expect(driver.Count()).To(BeZero())
		})
	})
})
