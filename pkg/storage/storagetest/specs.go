// Package storagetest holds behaviour specs shared by every storage.Driver.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/storage"
)

// NewRecord builds a valid record for tests.
func NewRecord(id, building string, created time.Time) *storage.Record {
	return &storage.Record{
		ID:          id,
		Building:    building,
		ShotDate:    "2023-07-12",
		ShotYMD:     20230712,
		Notes:       "north elevation",
		StorageKey:  "images/" + id + ".jpg",
		ContentType: "image/jpeg",
		Checksum:    "abc123",
		Namespace:   "default",
		CreatedAt:   created,
	}
}

// DriverSpecs registers the storage.Driver contract specs. newDriver is
// called before each spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		driver = newDriver()
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	Describe("Create and Get", func() {
		It("round trips every field", func() {
			rec := NewRecord("a", "Hall", base)
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Building).To(Equal("Hall"))
			Expect(got.ShotDate).To(Equal("2023-07-12"))
			Expect(got.ShotYMD).To(Equal(20230712))
			Expect(got.Notes).To(Equal("north elevation"))
			Expect(got.StorageKey).To(Equal("images/a.jpg"))
			Expect(got.ContentType).To(Equal("image/jpeg"))
			Expect(got.Checksum).To(Equal("abc123"))
			Expect(got.Namespace).To(Equal("default"))
			Expect(got.CreatedAt.Equal(base)).To(BeTrue())
		})

		It("stamps a creation time when missing", func() {
			rec := NewRecord("a", "Hall", time.Time{})
			Expect(driver.Create(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CreatedAt.IsZero()).To(BeFalse())
		})

		It("rejects duplicate ids", func() {
			Expect(driver.Create(ctx, NewRecord("a", "Hall", base))).To(Succeed())
			Expect(driver.Create(ctx, NewRecord("a", "Hall", base))).NotTo(Succeed())
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("missing"))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(driver.Create(ctx, NewRecord("a", "Hall", base))).To(Succeed())
			Expect(driver.Create(ctx, NewRecord("b", "Library", base.Add(time.Minute)))).To(Succeed())
			Expect(driver.Create(ctx, NewRecord("c", "Hall", base.Add(2*time.Minute)))).To(Succeed())
		})

		ids := func(recs []*storage.Record) []string {
			out := make([]string, len(recs))
			for i, r := range recs {
				out[i] = r.ID
			}
			return out
		}

		It("returns newest first", func() {
			recs, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"c", "b", "a"}))
		})

		It("filters by building", func() {
			recs, err := driver.List(ctx, storage.ListOptions{Building: "Hall"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"c", "a"}))
		})

		It("pages with limit and offset", func() {
			recs, err := driver.List(ctx, storage.ListOptions{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"b"}))
		})

		It("accepts an offset without a limit", func() {
			recs, err := driver.List(ctx, storage.ListOptions{Offset: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(recs)).To(Equal([]string{"a"}))
		})
	})

	Describe("Delete", func() {
		It("removes the record", func() {
			Expect(driver.Create(ctx, NewRecord("a", "Hall", base))).To(Succeed())
			Expect(driver.Delete(ctx, "a")).To(Succeed())

			_, err := driver.Get(ctx, "a")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("returns NotFoundError for unknown ids", func() {
			Expect(storage.IsNotFound(driver.Delete(ctx, "missing"))).To(BeTrue())
		})
	})

	Describe("Count and Buildings", func() {
		It("aggregates records per building", func() {
			Expect(driver.Create(ctx, NewRecord("a", "Hall", base))).To(Succeed())
			Expect(driver.Create(ctx, NewRecord("b", "Library", base))).To(Succeed())
			Expect(driver.Create(ctx, NewRecord("c", "Hall", base))).To(Succeed())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			buildings, err := driver.Buildings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(buildings).To(Equal([]storage.BuildingCount{
				{Building: "Hall", Count: 2},
				{Building: "Library", Count: 1},
			}))
		})

		It("counts an empty store as zero", func() {
			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})
}
