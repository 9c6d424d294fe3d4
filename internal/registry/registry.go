// Package registry holds the per-instrument, per-account routing
// metadata the router consults. It is built once at startup and read
// only afterwards.
package registry

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/model/enum"
)

// Route describes one account permitted to trade an instrument.
type Route struct {
	Account        string
	ExchangeSymbol string
	Permitted      enum.Permission
	PricePrecision int32
	SizePrecision  int32
	Priority       int // lower is tried first among equal prices
}

// Registry maps instrument names to their candidate routes.
type Registry struct {
	routes map[string][]Route
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string][]Route)}
}

// Add registers a route for an instrument. An account may appear at
// most once per instrument.
func (r *Registry) Add(instrument string, route Route) error {
	if instrument == "" {
		return errors.New("instrument name is empty")
	}
	if route.Account == "" {
		return errors.New("route account is empty")
	}
	if !route.Permitted.IsAvailable() {
		return errors.Errorf("route permission is invalid: %d", route.Permitted)
	}
	for _, existing := range r.routes[instrument] {
		if existing.Account == route.Account {
			return errors.Errorf("route already exists: %s / %s", instrument, route.Account)
		}
	}
	if route.ExchangeSymbol == "" {
		route.ExchangeSymbol = instrument
	}

	routes := append(r.routes[instrument], route)
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Priority < routes[j].Priority
	})
	r.routes[instrument] = routes
	return nil
}

// AccountsFor returns the routes permitted to trade the instrument on
// the given side, ordered by priority.
func (r *Registry) AccountsFor(instrument string, side enum.Side) []Route {
	out := make([]Route, 0, len(r.routes[instrument]))
	for _, route := range r.routes[instrument] {
		if route.Permitted.Allows(side) {
			out = append(out, route)
		}
	}
	return out
}

// Instruments lists every registered instrument name, sorted.
func (r *Registry) Instruments() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
