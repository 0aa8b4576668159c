package minio

import (
	"context"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	Describe("presignExpiry", func() {
		It("defaults non-positive values", func() {
			Expect(presignExpiry(0)).To(Equal(DefaultPresignExpiry))
			Expect(presignExpiry(-time.Second)).To(Equal(DefaultPresignExpiry))
		})

		It("caps long expiries", func() {
			Expect(presignExpiry(time.Hour)).To(Equal(MaxPresignExpiry))
		})

		It("keeps shorter expiries", func() {
			Expect(presignExpiry(time.Minute)).To(Equal(time.Minute))
		})
	})

	Describe("newStore", func() {
		It("requires an endpoint and bucket", func() {
			_, err := newStore(Config{Endpoint: "localhost:9000"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("URL", func() {
		It("presigns GET URLs offline when a region is set", func() {
			s, err := newStore(Config{
				Endpoint:      "localhost:9000",
				AccessKey:     "minio",
				SecretKey:     "minio123",
				Bucket:        "snaps",
				Region:        "us-east-1",
				PresignExpiry: time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())

			raw, err := s.URL(context.Background(), "images/a.jpg")
			Expect(err).NotTo(HaveOccurred())

			u, err := url.Parse(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Host).To(Equal("localhost:9000"))
			Expect(u.Path).To(Equal("/snaps/images/a.jpg"))
			Expect(u.Query().Get("X-Amz-Expires")).To(Equal("900"))
		})

		It("rejects invalid keys", func() {
			s, err := newStore(Config{Endpoint: "localhost:9000", Bucket: "snaps", Region: "us-east-1"})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.URL(context.Background(), "../x")
			Expect(err).To(HaveOccurred())
		})
	})
})
