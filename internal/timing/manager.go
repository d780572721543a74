// SPDX-License-Identifier: MIT
// Package timing provides the shared timing manager: one mutable holder of
// the master tempo (BPM plus optional tempo map) that every component
// converts through. Multiple transport coordinators must not share a manager
// unless they are meant to stay synchronized.
package timing

import (
	"sync"

	"vizsync/internal/tempo"
)

// TicksPerQuarter re-exports the canonical PPQ so callers holding a Manager
// do not need to import the tempo package for the constant.
const TicksPerQuarter = tempo.TicksPerQuarter

// DefaultBPM is used until SetBPM is called.
const DefaultBPM = 120.0

// Manager converts between seconds, beats and ticks using the current
// master tempo. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	bpm      float64
	tempoMap []tempo.MapEntry
}

// NewManager returns a Manager at DefaultBPM with no tempo map.
func NewManager() *Manager {
	return &Manager{bpm: DefaultBPM}
}

// SetBPM updates the fallback tempo used when no tempo map is set.
// Non-positive values are clamped to a minimal positive tempo.
func (m *Manager) SetBPM(bpm float64) {
	if bpm < 1e-6 {
		bpm = 1e-6
	}
	m.mu.Lock()
	m.bpm = bpm
	m.mu.Unlock()
}

// BPM returns the current fallback tempo.
func (m *Manager) BPM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bpm
}

// SetTempoMap replaces the master tempo map. The slice is copied; passing
// nil clears the map so conversions fall back to the BPM constant.
func (m *Manager) SetTempoMap(entries []tempo.MapEntry) {
	var cp []tempo.MapEntry
	if len(entries) > 0 {
		cp = make([]tempo.MapEntry, len(entries))
		copy(cp, entries)
	}
	m.mu.Lock()
	m.tempoMap = cp
	m.mu.Unlock()
}

// TempoMap returns the current master tempo map. The returned slice must be
// treated as read-only.
func (m *Manager) TempoMap() []tempo.MapEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tempoMap
}

// SecondsToTicks converts a time position to canonical ticks.
func (m *Manager) SecondsToTicks(sec float64) float64 {
	m.mu.RLock()
	tm, spb := m.tempoMap, tempo.FallbackSecPerBeat(m.bpm)
	m.mu.RUnlock()
	return tempo.SecondsToTicks(tm, sec, spb)
}

// TicksToSeconds converts a canonical tick position to seconds.
func (m *Manager) TicksToSeconds(ticks float64) float64 {
	m.mu.RLock()
	tm, spb := m.tempoMap, tempo.FallbackSecPerBeat(m.bpm)
	m.mu.RUnlock()
	return tempo.TicksToSeconds(tm, ticks, spb)
}

// TicksPerQuarter returns the canonical PPQ resolution.
func (m *Manager) TicksPerQuarter() int {
	return tempo.TicksPerQuarter
}
