package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/storage"
	"github.com/papercomputeco/snaps/pkg/storage/inmemory"
	"github.com/papercomputeco/snaps/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies that callers cannot mutate", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		Expect(d.Create(ctx, storagetest.NewRecord("a", "Hall", time.Now()))).To(Succeed())

		got, err := d.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		got.Building = "changed"

		again, err := d.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Building).To(Equal("Hall"))
	})
})
