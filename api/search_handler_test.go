package api

import (
	"encoding/json"
	"image/color"
	"net/url"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/snaps/api/search"
	testutils "github.com/papercomputeco/snaps/pkg/utils/test"
)

var _ = Describe("handleSearchEndpoint", func() {
	var (
		h      *harness
		hallID string
	)

	BeforeEach(func() {
		h = newHarness(nil)
		hallID = h.upload(testutils.PNG(color.RGBA{R: 255, A: 255}), "Hall", "2023-07-12")
		h.upload(testutils.PNG(color.RGBA{G: 255, A: 255}), "Hall", "2023-08-20")
		h.upload(testutils.PNG(color.RGBA{B: 255, A: 255}), "Library", "2023-07-15")
	})

	search := func(params url.Values) (int, apisearch.Output, []byte) {
		resp, body := h.get("/api/search?" + params.Encode())
		var out apisearch.Output
		if resp.StatusCode == fiber.StatusOK {
			Expect(json.Unmarshal(body, &out)).To(Succeed())
		}
		return resp.StatusCode, out, body
	}

	Context("when search is not configured", func() {
		It("returns 503", func() {
			h = newHarness(func(c *Config) { c.Searcher = nil })
			resp, _ := h.get("/api/search?q=test")
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Context("when neither q nor query_image_id is given", func() {
		It("returns 400", func() {
			status, _, body := search(url.Values{"building": {"Hall"}})
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(decodeError(body)).To(Equal("provide q or query_image_id"))
		})
	})

	Context("when k is invalid", func() {
		DescribeTable("returns 400",
			func(k string) {
				status, _, body := search(url.Values{"q": {"crane"}, "k": {k}})
				Expect(status).To(Equal(fiber.StatusBadRequest))
				Expect(decodeError(body)).To(ContainSubstring("k must be between 1 and 100"))
			},
			Entry("non-integer", "abc"),
			Entry("zero", "0"),
			Entry("negative", "-1"),
			Entry("too large", "101"),
		)
	})

	Context("when dates are invalid", func() {
		It("returns 400 for malformed dates", func() {
			status, _, _ := search(url.Values{"q": {"crane"}, "date_from": {"07/01/2023"}})
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for inverted ranges", func() {
			status, _, _ := search(url.Values{"q": {"crane"}, "date_from": {"2023-08-01"}, "date_to": {"2023-07-01"}})
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("when the query image does not exist", func() {
		It("returns 404", func() {
			status, _, _ := search(url.Values{"query_image_id": {"missing"}})
			Expect(status).To(Equal(fiber.StatusNotFound))
		})
	})

	Context("when search succeeds", func() {
		It("finds the July Hall image", func() {
			status, out, _ := search(url.Values{
				"q":         {"facade"},
				"building":  {"Hall"},
				"date_from": {"2023-07-01"},
				"date_to":   {"2023-07-31"},
				"k":         {"5"},
			})
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].ID).To(Equal(hallID))
			Expect(out.Results[0].Score).NotTo(BeZero())
		})

		It("returns at most k results in descending order", func() {
			status, out, _ := search(url.Values{"q": {"facade"}, "k": {"2"}})
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(out.Results).To(HaveLen(2))
			Expect(out.Results[0].Score).To(BeNumerically(">=", out.Results[1].Score))
		})

		It("ranks a just uploaded query image first", func() {
			status, out, _ := search(url.Values{"query_image_id": {hallID}})
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(out.Results[0].ID).To(Equal(hallID))
		})

		It("echoes the namespace", func() {
			status, out, _ := search(url.Values{"q": {"facade"}, "namespace": {"default"}})
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(out.Namespace).To(Equal("default"))
			Expect(out.Results).To(HaveLen(3))
		})
	})

	Context("when the vector store fails", func() {
		It("returns 500", func() {
			h.vectors.FailQuery = true
			status, _, body := search(url.Values{"q": {"crane"}})
			Expect(status).To(Equal(fiber.StatusInternalServerError))
			Expect(decodeError(body)).To(ContainSubstring("failed to query vector store"))
		})
	})
})
