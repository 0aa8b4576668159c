package eventstream

import "errors"

// ErrNilImageEvent indicates a nil image event payload was provided to a publisher.
var ErrNilImageEvent = errors.New("nil image event")
