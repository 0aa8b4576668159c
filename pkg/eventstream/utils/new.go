// Package eventstreamutils builds the configured event publisher.
package eventstreamutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/eventstream"
	"github.com/papercomputeco/snaps/pkg/eventstream/kafka"
	"github.com/papercomputeco/snaps/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *zap.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
			Logger:  o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", o.ProviderType)
	}
}
