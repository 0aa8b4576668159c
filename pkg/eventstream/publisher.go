package eventstream

import "context"

// Publisher publishes image events to an event stream backend.
type Publisher interface {
	PublishImage(ctx context.Context, event *ImageEvent) error
	Close() error
}
