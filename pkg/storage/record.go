package storage

import "time"

// Record is the canonical, immutable description of an uploaded image.
type Record struct {
	ID          string    `json:"id"`
	Building    string    `json:"building"`
	ShotDate    string    `json:"shot_date"`
	ShotYMD     int       `json:"shot_ymd"`
	Notes       string    `json:"notes"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"`
	Namespace   string    `json:"namespace"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListOptions pages and filters List.
type ListOptions struct {
	// Building restricts the listing to one building when set.
	Building string

	Limit  int
	Offset int
}

// BuildingCount is the number of records stored for one building.
type BuildingCount struct {
	Building string `json:"building"`
	Count    int    `json:"count"`
}
