package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeImageIngested is emitted after an image's record and vector are stored.
	EventTypeImageIngested = "snaps.image.ingested"

	// EventTypeImageDeleted is emitted after an image is removed from every store.
	EventTypeImageDeleted = "snaps.image.deleted"
)

// ImageEvent is a transport-neutral event payload for an image lifecycle change.
type ImageEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Image         ImagePayload `json:"image"`
}

// ImagePayload describes the image the event refers to.
type ImagePayload struct {
	ID        string `json:"id"`
	Building  string `json:"building"`
	ShotDate  string `json:"shot_date"`
	ShotYMD   int    `json:"shot_ymd"`
	Notes     string `json:"notes,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// NewImageEvent stamps a payload with a fresh event id and UTC emit time.
func NewImageEvent(eventType string, image ImagePayload) *ImageEvent {
	return &ImageEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Image:         image,
	}
}
