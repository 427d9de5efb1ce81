// Package entities contains the core domain objects for the riverdash service
package entities

// Thresholds holds a station's ascending alert levels in meters.
// Attention < Caution < Warning < Danger is assumed and validated at load.
type Thresholds struct {
	Attention float64 `yaml:"attention" json:"attention"`
	Caution   float64 `yaml:"caution" json:"caution"`
	Warning   float64 `yaml:"warning" json:"warning"`
	Danger    float64 `yaml:"danger" json:"danger"`
}

// Station describes one monitored gauge station. Stations are loaded once
// from the embedded registry and never mutated.
type Station struct {
	ID         string     `yaml:"id" json:"id"`                 // HRFCO gauge code
	Name       string     `yaml:"name" json:"name"`             // display name, used for fallback queries
	Location   string     `yaml:"location" json:"location"`     // river/area label
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"` // meters
}
