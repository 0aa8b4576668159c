package shotdate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/shotdate"
)

var _ = Describe("shotdate", func() {
	Describe("ParseYMD", func() {
		It("converts a calendar date to its integer form", func() {
			ymd, err := shotdate.ParseYMD("2023-07-12")
			Expect(err).NotTo(HaveOccurred())
			Expect(ymd).To(Equal(20230712))
		})

		It("trims surrounding whitespace", func() {
			ymd, err := shotdate.ParseYMD("  2024-01-01 ")
			Expect(err).NotTo(HaveOccurred())
			Expect(ymd).To(Equal(20240101))
		})

		It("rejects an empty date", func() {
			_, err := shotdate.ParseYMD("")
			Expect(err).To(MatchError(shotdate.ErrInvalid))
		})

		It("rejects a non calendar date", func() {
			_, err := shotdate.ParseYMD("2023-02-30")
			Expect(err).To(MatchError(shotdate.ErrInvalid))
		})

		It("rejects other layouts", func() {
			_, err := shotdate.ParseYMD("12/07/2023")
			Expect(err).To(MatchError(shotdate.ErrInvalid))
		})
	})

	Describe("FromYMD", func() {
		It("round trips through ParseYMD", func() {
			ymd, err := shotdate.ParseYMD("2023-07-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(shotdate.FromYMD(ymd)).To(Equal("2023-07-01"))
		})
	})

	Describe("YMD ordering", func() {
		It("orders integers the same way as dates", func() {
			a, _ := shotdate.ParseYMD("2023-07-31")
			b, _ := shotdate.ParseYMD("2023-08-01")
			Expect(a).To(BeNumerically("<", b))
		})
	})
})
