package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hydrowatch/riverdash/internal/entities"
)

//go:embed stations.yaml
var stationsYAML []byte

// Registry holds the static table of monitored gauge stations.
type Registry struct {
	stations []entities.Station
	byID     map[string]entities.Station
}

// LoadRegistry parses the embedded station table. It validates that every
// station's thresholds are strictly ascending so the risk engine can rely
// on the ordering.
func LoadRegistry() (*Registry, error) {
	return parseRegistry(stationsYAML)
}

func parseRegistry(data []byte) (*Registry, error) {
	var doc struct {
		Stations []entities.Station `yaml:"stations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse station registry: %v", err)
	}
	if len(doc.Stations) == 0 {
		return nil, fmt.Errorf("station registry is empty")
	}

	byID := make(map[string]entities.Station, len(doc.Stations))
	for _, st := range doc.Stations {
		if st.ID == "" || st.Name == "" {
			return nil, fmt.Errorf("station entry missing id or name: %+v", st)
		}
		th := st.Thresholds
		if !(th.Attention < th.Caution && th.Caution < th.Warning && th.Warning < th.Danger) {
			return nil, fmt.Errorf("station %s has non-ascending thresholds: %+v", st.ID, th)
		}
		if _, dup := byID[st.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %s", st.ID)
		}
		byID[st.ID] = st
	}

	return &Registry{stations: doc.Stations, byID: byID}, nil
}

// Stations returns all registered stations in registry order.
func (r *Registry) Stations() []entities.Station {
	out := make([]entities.Station, len(r.stations))
	copy(out, r.stations)
	return out
}

// Get looks a station up by its gauge code.
func (r *Registry) Get(stationID string) (entities.Station, bool) {
	st, ok := r.byID[stationID]
	return st, ok
}

// FindByName looks a station up by display-name substring match, the same
// loose matching the fallback portal forces on us.
func (r *Registry) FindByName(name string) (entities.Station, bool) {
	for _, st := range r.stations {
		if strings.Contains(st.Name, name) || strings.Contains(name, st.Name) {
			return st, true
		}
	}
	return entities.Station{}, false
}
