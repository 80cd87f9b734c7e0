package symbols

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	yamlv2 "gopkg.in/yaml.v2"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// SnapshotVersion is bumped whenever the persisted shape changes.
const SnapshotVersion = 1

// Snapshot is the on-disk persisted state described in spec.md §6: a JSON
// dump of the SymbolMapping table plus generation metadata. It is the only
// state this engine persists — everything else is reconstructed from venue
// state on start.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Version     int               `json:"version"`
	Mappings    []snapshotMapping `json:"mappings"`
}

type snapshotMapping struct {
	Normalized string            `json:"normalized"`
	PerVenue   map[string]string `json:"perVenueId"`
}

// legacySnapshot is the yaml.v2-tagged shape this registry shipped before
// migrating the on-disk format to JSON. Reading it lets an existing
// deployment upgrade in place instead of re-discovering from scratch.
type legacySnapshot struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Mappings    []struct {
		Normalized string            `yaml:"normalized"`
		PerVenue   map[string]string `yaml:"per_venue_id"`
	} `yaml:"mappings"`
}

// Save writes the current mapping table to path as JSON.
func (r *Registry) Save(path string) error {
	snap := Snapshot{GeneratedAt: time.Now(), Version: SnapshotVersion}
	for _, m := range r.All() {
		pv := make(map[string]string, len(m.PerVenue))
		for v, id := range m.PerVenue {
			pv[string(v)] = id
		}
		snap.Mappings = append(snap.Mappings, snapshotMapping{Normalized: m.Normalized, PerVenue: pv})
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal symbol snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write symbol snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads path, trying the current JSON format first and falling back to
// the legacy yaml.v2 format, then installs the result into the registry.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read symbol snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err == nil && len(snap.Mappings) > 0 {
		r.LoadFrom(toMappings(snap.Mappings))
		return nil
	}

	var legacy legacySnapshot
	if err := yamlv2.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("symbol snapshot %s matches neither current nor legacy format: %w", path, err)
	}
	mappings := make([]snapshotMapping, 0, len(legacy.Mappings))
	for _, m := range legacy.Mappings {
		mappings = append(mappings, snapshotMapping{Normalized: m.Normalized, PerVenue: m.PerVenue})
	}
	r.LoadFrom(toMappings(mappings))
	return nil
}

func toMappings(in []snapshotMapping) []Mapping {
	out := make([]Mapping, 0, len(in))
	for _, m := range in {
		pv := make(map[venue.Name]string, len(m.PerVenue))
		for v, id := range m.PerVenue {
			pv[venue.Name(v)] = id
		}
		out = append(out, Mapping{Normalized: m.Normalized, PerVenue: pv})
	}
	return out
}
