package provider

import (
	"net/http"
	"sort"
	"strings"

	"github.com/franz/albumhound/internal/config"
)

// Registry holds the enabled providers in their configured order
type Registry struct {
	providers []Provider
}

// NewRegistry builds every enabled provider from settings. order lists
// provider names in preference order; unlisted providers follow in
// configuration order.
func NewRegistry(cfg config.ProviderSettings, order []string, client *http.Client) *Registry {
	var ps []Provider
	for _, ix := range cfg.Newznab {
		if ix.Enabled {
			ps = append(ps, NewNewznab(ix, client))
		}
	}
	for _, ix := range cfg.Torznab {
		if ix.Enabled {
			ps = append(ps, NewTorznab(ix, client))
		}
	}
	for _, g := range cfg.Gazelle {
		if g.Enabled {
			ps = append(ps, NewGazelle(g, client))
		}
	}
	if cfg.PirateBay.Enabled {
		ps = append(ps, NewPirateBay(cfg.PirateBay, client))
	}
	if cfg.Slskd.Enabled {
		ps = append(ps, NewSlskd(cfg.Slskd, client))
	}
	return NewRegistryFrom(ps, order)
}

// NewRegistryFrom orders an explicit provider list
func NewRegistryFrom(ps []Provider, order []string) *Registry {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[strings.ToLower(name)] = i
	}
	pos := func(p Provider) int {
		if r, ok := rank[strings.ToLower(p.Name())]; ok {
			return r
		}
		return len(order)
	}

	sorted := append([]Provider(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pos(sorted[i]) < pos(sorted[j])
	})
	return &Registry{providers: sorted}
}

// Providers returns all providers, preferred first
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Len returns the number of enabled providers
func (r *Registry) Len() int {
	return len(r.providers)
}

// Position returns the preference index of a provider, or Len() when unknown
func (r *Registry) Position(name string) int {
	for i, p := range r.providers {
		if p.Name() == name {
			return i
		}
	}
	return len(r.providers)
}

// Filter returns the providers whose kind is accepted
func (r *Registry) Filter(accept func(Kind) bool) []Provider {
	var out []Provider
	for _, p := range r.providers {
		if accept(p.Kind()) {
			out = append(out, p)
		}
	}
	return out
}
