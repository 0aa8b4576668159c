package kafka

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/snaps/pkg/eventstream"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, DefaultTopic, nil)
	})

	It("requires brokers", func() {
		_, err := NewPublisher(Config{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects nil events", func() {
		Expect(p.PublishImage(context.Background(), nil)).To(MatchError(eventstream.ErrNilImageEvent))
	})

	It("keys messages by image id and encodes the event as JSON", func() {
		event := eventstream.NewImageEvent(eventstream.EventTypeImageIngested, eventstream.ImagePayload{ID: "img-1", Building: "Hall"})
		Expect(p.PublishImage(context.Background(), event)).To(Succeed())

		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("img-1"))
		Expect(w.msgs[0].Headers[0].Value).To(BeEquivalentTo(eventstream.EventTypeImageIngested))

		var decoded eventstream.ImageEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &decoded)).To(Succeed())
		Expect(decoded.Image.Building).To(Equal("Hall"))
	})

	It("wraps writer errors", func() {
		w.err = errors.New("broker down")
		event := eventstream.NewImageEvent(eventstream.EventTypeImageDeleted, eventstream.ImagePayload{ID: "img-1"})
		err := p.PublishImage(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
