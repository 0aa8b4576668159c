package vector_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/vector"
)

var _ = Describe("Metadata", func() {
	meta := vector.Metadata{
		Building:  "Hall",
		ShotDate:  "2023-07-12",
		ShotYMD:   20230712,
		ImageURL:  "http://localhost:8081/media/images/a.jpg",
		Notes:     "north facade",
		Namespace: "site-a",
	}

	It("decodes shot_ymd from JSON numbers", func() {
		raw, err := json.Marshal(meta.Map())
		Expect(err).NotTo(HaveOccurred())

		var payload map[string]any
		Expect(json.Unmarshal(raw, &payload)).To(Succeed())

		Expect(vector.MetadataFromMap(payload)).To(Equal(meta))
	})

	It("decodes shot_ymd from int64 payload values", func() {
		payload := meta.Map()
		payload[vector.KeyShotYMD] = int64(20230712)
		Expect(vector.MetadataFromMap(payload).ShotYMD).To(Equal(20230712))
	})

	It("returns zero metadata for a nil map", func() {
		Expect(vector.MetadataFromMap(nil)).To(Equal(vector.Metadata{}))
	})
})
