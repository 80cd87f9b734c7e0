// Package symbols implements component E: the Symbol Mapping Registry
// (spec.md §4.E) — normalized <-> per-venue identifier mapping, common-asset
// discovery, and a persisted snapshot so the engine can start without
// re-discovering.
package symbols

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Mapping is the SymbolMapping value from spec.md §3.
type Mapping struct {
	Normalized string
	PerVenue   map[venue.Name]string
}

// Tradable reports whether this symbol appears on at least 2 venues
// (spec.md §3).
func (m Mapping) Tradable() bool { return len(m.PerVenue) >= 2 }

// Registry holds the discovered mapping table in memory.
type Registry struct {
	log      zerolog.Logger
	mappings map[string]Mapping // keyed by normalized
}

func New(log zerolog.Logger) *Registry {
	return &Registry{log: log, mappings: map[string]Mapping{}}
}

// Lister is the subset of venue.Adapter the registry needs for discovery.
type Lister interface {
	Venue() venue.Name
	ListSymbols(ctx context.Context) ([]string, error)
}

// DiscoverCommonAssets queries every adapter's symbol catalog, normalizes
// each raw identifier, and rebuilds the mapping table (spec.md §4.E).
func (r *Registry) DiscoverCommonAssets(ctx context.Context, adapters []Lister) error {
	fresh := map[string]Mapping{}
	for _, a := range adapters {
		raws, err := a.ListSymbols(ctx)
		if err != nil {
			r.log.Warn().Str("venue", string(a.Venue())).Err(err).Msg("symbol discovery failed for venue")
			continue
		}
		for _, raw := range raws {
			norm := Normalize(raw)
			m, ok := fresh[norm]
			if !ok {
				m = Mapping{Normalized: norm, PerVenue: map[venue.Name]string{}}
			}
			m.PerVenue[a.Venue()] = raw
			fresh[norm] = m
		}
	}
	r.mappings = fresh
	return nil
}

// TradableSymbols returns every normalized symbol present on >= 2 venues,
// sorted for determinism.
func (r *Registry) TradableSymbols() []string {
	out := make([]string, 0, len(r.mappings))
	for norm, m := range r.mappings {
		if m.Tradable() {
			out = append(out, norm)
		}
	}
	sort.Strings(out)
	return out
}

// Lookup returns the mapping for a normalized symbol, if known.
func (r *Registry) Lookup(normalized string) (Mapping, bool) {
	m, ok := r.mappings[normalized]
	return m, ok
}

// VenuesFor returns every venue a normalized symbol is mapped on.
func (r *Registry) VenuesFor(normalized string) []venue.Name {
	m, ok := r.mappings[normalized]
	if !ok {
		return nil
	}
	out := make([]venue.Name, 0, len(m.PerVenue))
	for v := range m.PerVenue {
		out = append(out, v)
	}
	return out
}

// All returns every known mapping, for snapshot persistence.
func (r *Registry) All() []Mapping {
	out := make([]Mapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Normalized < out[j].Normalized })
	return out
}

// LoadFrom replaces the in-memory table with previously persisted mappings
// (used at startup to skip re-discovery, spec.md §6 Persisted State).
func (r *Registry) LoadFrom(mappings []Mapping) {
	fresh := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		fresh[m.Normalized] = m
	}
	r.mappings = fresh
}
