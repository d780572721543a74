// SPDX-License-Identifier: MIT
/*
Package store owns the timeline state: the track list, per-source feature
caches and MIDI note caches. It is the single mutation point for cached
analysis data; everything downstream (samplers, the schedule compiler, UI
transports) reads immutable snapshots taken under the store's lock.
*/
package store

import (
	"sort"
	"sync"

	"vizsync/internal/feature"
	"vizsync/internal/log"
	"vizsync/internal/midi"
	"vizsync/internal/schedule"
	"vizsync/internal/timing"
)

// TrackType tags what a timeline track plays.
type TrackType string

const (
	TrackAudio TrackType = "audio"
	TrackMIDI  TrackType = "midi"
)

// CacheStatus tracks the analysis lifecycle of an audio source.
type CacheStatus string

const (
	StatusNone    CacheStatus = "none"
	StatusPending CacheStatus = "pending"
	StatusReady   CacheStatus = "ready"
	StatusFailed  CacheStatus = "failed"
)

// Track is the canonical timeline track record. All positions live in the
// tick domain; second-domain values are derived on demand against the
// current tempo so a tempo change moves every track coherently.
type Track struct {
	ID                string
	Name              string
	Type              TrackType
	Enabled           bool
	Mute              bool
	Solo              bool
	Gain              float64
	OffsetTicks       float64
	RegionStartTicks  float64
	RegionEndTicks    float64
	HasRegionStart    bool
	HasRegionEnd      bool
	AudioSourceID     string
	MIDISourceID      string
	AnalysisProfileID string
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	tracks     map[string]*Track
	order      []string
	caches     map[string]*feature.Cache
	midiCaches map[string]*midi.NoteCache
	status     map[string]CacheStatus

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func New() *Store {
	return &Store{
		tracks:     make(map[string]*Track),
		caches:     make(map[string]*feature.Cache),
		midiCaches: make(map[string]*midi.NoteCache),
		status:     make(map[string]CacheStatus),
		subs:       make(map[int]chan struct{}),
	}
}

// Subscribe registers for change notifications. The returned channel gets a
// non-blocking signal per mutation (coalesced when the reader lags). The
// unsubscribe func is idempotent.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default: // reader already has a pending signal
		}
	}
}

// PutTrack inserts or replaces a track. A copy is stored so the caller's
// struct cannot alias store state.
func (s *Store) PutTrack(tr Track) {
	s.mu.Lock()
	if _, exists := s.tracks[tr.ID]; !exists {
		s.order = append(s.order, tr.ID)
	}
	cp := tr
	s.tracks[tr.ID] = &cp
	s.mu.Unlock()
	s.notify()
}

// RemoveTrack deletes a track by ID. Removing an absent track is a no-op.
func (s *Store) RemoveTrack(id string) {
	s.mu.Lock()
	if _, exists := s.tracks[id]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.tracks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Tracks returns the track list in insertion order, as copies.
func (s *Store) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, 0, len(s.order))
	for _, id := range s.order {
		if tr, ok := s.tracks[id]; ok {
			out = append(out, *tr)
		}
	}
	return out
}

// Track returns one track by ID.
func (s *Store) Track(id string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.tracks[id]
	if !ok {
		return Track{}, false
	}
	return *tr, true
}

// SetStatus records the analysis lifecycle state of an audio source.
func (s *Store) SetStatus(sourceID string, st CacheStatus) {
	s.mu.Lock()
	s.status[sourceID] = st
	s.mu.Unlock()
	s.notify()
}

// Status reports an audio source's analysis state, StatusNone when unknown.
func (s *Store) Status(sourceID string) CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.status[sourceID]; ok {
		return st
	}
	return StatusNone
}

// ApplyAnalysis merges incoming analysis results into the source's cache.
// This is the only path that touches feature caches; the merge produces a
// fresh object graph so snapshots handed out earlier stay valid.
func (s *Store) ApplyAnalysis(sourceID string, incoming *feature.Cache) *feature.Cache {
	s.mu.Lock()
	merged := feature.MergeCaches(s.caches[sourceID], incoming)
	if merged != nil {
		s.caches[sourceID] = merged
		s.status[sourceID] = StatusReady
	}
	s.mu.Unlock()
	s.notify()
	if merged != nil {
		log.Debugf("store: cache %s now at version %d with %d tracks",
			sourceID, merged.Version, len(merged.Tracks))
	}
	return merged
}

// Cache returns the current feature cache for a source, nil when absent.
// The returned cache is immutable; callers may hold it across mutations.
func (s *Store) Cache(sourceID string) *feature.Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caches[sourceID]
}

// PutMIDICache installs parsed MIDI notes for a source.
func (s *Store) PutMIDICache(c *midi.NoteCache) {
	if c == nil {
		return
	}
	s.mu.Lock()
	s.midiCaches[c.SourceID] = c
	s.mu.Unlock()
	s.notify()
}

// MIDICache returns the note cache for a source, nil when absent.
func (s *Store) MIDICache(sourceID string) *midi.NoteCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.midiCaches[sourceID]
}

// MIDICaches snapshots the note cache map. The caches themselves are
// immutable after load, only the map is copied.
func (s *Store) MIDICaches() map[string]*midi.NoteCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*midi.NoteCache, len(s.midiCaches))
	for id, c := range s.midiCaches {
		out[id] = c
	}
	return out
}

// SelectFeatureFrame samples one feature frame for a timeline track at an
// absolute playhead tick, accounting for the track's offset. Returns false
// when the track is not an analyzed audio track or the feature is absent.
func (s *Store) SelectFeatureFrame(trackID, featureKey string, absTick float64, opts feature.SampleOptions) (feature.Frame, bool) {
	ft, relTick, ok := s.resolveFeature(trackID, featureKey, absTick)
	if !ok {
		return feature.Frame{}, false
	}
	return feature.SampleFrame(ft, relTick, opts)
}

// SampleFeatureRange samples a decimated range of feature frames for a
// timeline track over an absolute tick window.
func (s *Store) SampleFeatureRange(trackID, featureKey string, startTick, endTick float64, maxFrames int, opts feature.SampleOptions) (feature.RangeResult, bool) {
	ft, relStart, ok := s.resolveFeature(trackID, featureKey, startTick)
	if !ok {
		return feature.RangeResult{}, false
	}
	relEnd := relStart + (endTick - startTick)
	return feature.SampleRange(ft, relStart, relEnd, maxFrames, opts)
}

func (s *Store) resolveFeature(trackID, featureKey string, absTick float64) (*feature.Track, float64, bool) {
	s.mu.RLock()
	tr, ok := s.tracks[trackID]
	if !ok || tr.Type != TrackAudio || tr.AudioSourceID == "" {
		s.mu.RUnlock()
		return nil, 0, false
	}
	cache := s.caches[tr.AudioSourceID]
	offset := tr.OffsetTicks
	profileID := tr.AnalysisProfileID
	s.mu.RUnlock()

	if cache == nil {
		return nil, 0, false
	}
	_, ft := feature.ResolveTrack(cache, featureKey, feature.ResolveOptions{
		AnalysisProfileID: profileID,
	})
	if ft == nil {
		return nil, 0, false
	}
	return ft, absTick - offset, true
}

// CompileTracks projects the track list into the second-domain form the
// schedule compiler consumes, using the supplied tempo for tick conversion.
func (s *Store) CompileTracks(tm *timing.Manager) []schedule.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Track, 0, len(s.order))
	for _, id := range s.order {
		tr, ok := s.tracks[id]
		if !ok || tr.Type != TrackMIDI {
			continue
		}
		st := schedule.Track{
			ID:           tr.ID,
			Enabled:      tr.Enabled,
			Mute:         tr.Mute,
			Solo:         tr.Solo,
			Gain:         tr.Gain,
			OffsetSec:    tm.TicksToSeconds(tr.OffsetTicks),
			MIDISourceID: tr.MIDISourceID,
		}
		if tr.HasRegionStart {
			st.HasRegionStart = true
			st.RegionStartSec = tm.TicksToSeconds(tr.RegionStartTicks)
		}
		if tr.HasRegionEnd {
			st.HasRegionEnd = true
			st.RegionEndSec = tm.TicksToSeconds(tr.RegionEndTicks)
		}
		out = append(out, st)
	}
	return out
}

// StaleSources lists audio sources whose caches predate the registry's
// current calculator versions, sorted for stable output.
func (s *Store) StaleSources(currentVersions map[string]int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []string
	for id, c := range s.caches {
		if cacheIsStale(c, currentVersions) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}

func cacheIsStale(c *feature.Cache, current map[string]int) bool {
	for calcID, v := range current {
		got, ok := c.Params.CalculatorVersions[calcID]
		if !ok || got < v {
			return true
		}
	}
	return false
}
