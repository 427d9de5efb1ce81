package entities

import "time"

// KST is the fixed zone of every upstream timestamp. The sources have no DST,
// so a fixed offset avoids a tzdata dependency.
var KST = time.FixedZone("KST", 9*60*60)

// Source tags the provenance of a record. The dashboard must disclose
// degraded provenance, so the tag travels with every record.
type Source string

const (
	SourcePrimary  Source = "PRIMARY"
	SourceFallback Source = "FALLBACK"
)

// Record is the canonical, source-agnostic shape of one water-level
// observation. Every consumer downstream of the adapter depends on this
// shape and nothing else.
type Record struct {
	StationID  string    `json:"stationId"`
	Level      float64   `json:"level"` // meters
	ObservedAt time.Time `json:"observedAt"`
	Timestamp  int64     `json:"timestamp"` // epoch millis, for window filtering
	FlowRate   float64   `json:"flowRate"`  // m³/s
	Source     Source    `json:"source"`
}

// YMDHM renders the observation time back in the primary source's
// YYYYMMDDHHMM format.
func (r Record) YMDHM() string {
	return r.ObservedAt.In(KST).Format("200601021504")
}
