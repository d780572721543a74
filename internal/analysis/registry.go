// SPDX-License-Identifier: MIT
/*
Package analysis extracts feature tracks from decoded audio and manages the
work of doing so: a registry of versioned calculators, a runner that frames
samples and produces immutable feature caches, and a single-flight scheduler
that serializes the expensive computations.
*/
package analysis

import (
	"fmt"
	"sort"

	"vizsync/internal/feature"
)

// Calculator computes one feature track from framed audio samples.
// Implementations must be safe for reuse across runs but are never invoked
// concurrently for the same buffer (the scheduler serializes runs).
type Calculator interface {
	// FeatureKey names the feature this calculator produces ("rms", ...).
	FeatureKey() string
	// ID uniquely identifies the calculator in version bookkeeping.
	ID() string
	// Version is bumped whenever the calculator's output changes shape or
	// meaning; cached tracks with an older version are considered stale.
	Version() int
	// Channels is the number of values per output frame.
	Channels() int
	// ChannelAliases optionally names the output channels.
	ChannelAliases() []string
	// Format tags the payload layout ("scalar", "peaks", "bands").
	Format() string
	// Frame computes one output frame from one window of mono samples,
	// appending Channels values to dst and returning it.
	Frame(dst []float64, window []float64, sampleRate float64) []float64
}

// Registry holds the known calculators. It is an explicit object passed to
// whoever needs it; there is no package-level instance.
type Registry struct {
	calculators map[string]Calculator
	order       []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{calculators: make(map[string]Calculator)}
}

// NewDefaultRegistry returns a registry with the built-in calculators.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(NewRMSCalculator())
	r.MustRegister(NewWaveformCalculator())
	r.MustRegister(NewBandEnergyCalculator())
	return r
}

// Register adds a calculator. A duplicate or empty id is a programming
// error and fails loudly at registration time, not during analysis.
func (r *Registry) Register(c Calculator) error {
	if c == nil {
		return fmt.Errorf("analysis: cannot register nil calculator")
	}
	id := c.ID()
	if id == "" {
		return fmt.Errorf("analysis: calculator for feature %q has empty id", c.FeatureKey())
	}
	if _, exists := r.calculators[id]; exists {
		return fmt.Errorf("analysis: duplicate calculator id %q", id)
	}
	if c.FeatureKey() == "" {
		return fmt.Errorf("analysis: calculator %q has empty feature key", id)
	}
	r.calculators[id] = c
	r.order = append(r.order, id)
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(c Calculator) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the calculator with the given id.
func (r *Registry) Lookup(id string) (Calculator, bool) {
	c, ok := r.calculators[id]
	return c, ok
}

// ByFeature returns the calculator producing the given feature key.
func (r *Registry) ByFeature(featureKey string) (Calculator, bool) {
	for _, id := range r.order {
		if c := r.calculators[id]; c.FeatureKey() == featureKey {
			return c, true
		}
	}
	return nil, false
}

// IDs returns the registered calculator ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Versions returns the current id -> version table.
func (r *Registry) Versions() map[string]int {
	out := make(map[string]int, len(r.calculators))
	for id, c := range r.calculators {
		out[id] = c.Version()
	}
	return out
}

// StaleTracks lists composite keys in the cache whose producing calculator
// has since moved to a newer version, sorted for deterministic output.
// These entries should be re-analyzed and merged over.
func (r *Registry) StaleTracks(cache *feature.Cache) []string {
	if cache == nil {
		return nil
	}
	var stale []string
	for key, tr := range cache.Tracks {
		if tr == nil {
			continue
		}
		c, ok := r.calculators[tr.CalculatorID]
		if ok && c.Version() > tr.Version {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	return stale
}
