package vector

import (
	"encoding/json"
	"math"
)

// Metadata payload keys, shared by every driver.
const (
	KeyBuilding  = "building"
	KeyShotDate  = "shot_date"
	KeyShotYMD   = "shot_ymd"
	KeyImageURL  = "image_url"
	KeyNotes     = "notes"
	KeyNamespace = "namespace"
)

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	Building  string `json:"building"`
	ShotDate  string `json:"shot_date"`
	ShotYMD   int    `json:"shot_ymd"`
	ImageURL  string `json:"image_url"`
	Notes     string `json:"notes"`
	Namespace string `json:"namespace,omitempty"`
}

// Map returns the metadata as a generic payload map.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		KeyBuilding:  m.Building,
		KeyShotDate:  m.ShotDate,
		KeyShotYMD:   m.ShotYMD,
		KeyImageURL:  m.ImageURL,
		KeyNotes:     m.Notes,
		KeyNamespace: m.Namespace,
	}
}

// MetadataFromMap decodes a payload map. Numbers may arrive as any numeric
// type (JSON decoders hand back float64, gRPC payloads int64).
func MetadataFromMap(p map[string]any) Metadata {
	m := Metadata{}
	if p == nil {
		return m
	}

	m.Building, _ = p[KeyBuilding].(string)
	m.ShotDate, _ = p[KeyShotDate].(string)
	m.ImageURL, _ = p[KeyImageURL].(string)
	m.Notes, _ = p[KeyNotes].(string)
	m.Namespace, _ = p[KeyNamespace].(string)
	m.ShotYMD = toInt(p[KeyShotYMD])

	return m
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(math.Round(float64(n)))
	case float64:
		return int(math.Round(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}
