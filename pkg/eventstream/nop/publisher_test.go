package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/snaps/pkg/eventstream"
	"github.com/papercomputeco/snaps/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("returns ErrNilImageEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishImage(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilImageEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishImage(context.Background(), &eventstream.ImageEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		Expect(nop.NewPublisher().Close()).To(Succeed())
	})
})
