// SPDX-License-Identifier: MIT
/*
Package schedule compiles lookahead windows of MIDI note events for playback.

CompileWindow is a pure, stateless function: given the track set, the note
caches, tempo information and a time window, it returns every note-on and
note-off falling inside the window in deterministic order. Re-running it
with updated inputs replaces any previous result; callers streaming
successive overlapping windows are responsible for deduplicating events they
already delivered.
*/
package schedule

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"vizsync/internal/midi"
	"vizsync/internal/tempo"
)

// EventKind discriminates note events. NoteOff sorts before NoteOn at equal
// times so a new note never preempts the release of a simultaneous old one.
type EventKind uint8

const (
	NoteOff EventKind = iota
	NoteOn
)

func (k EventKind) String() string {
	if k == NoteOn {
		return "noteOn"
	}
	return "noteOff"
}

// MarshalJSON serializes the kind by name so the wire protocol stays
// self-describing for editor clients.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "noteOff":
		*k = NoteOff
	case "noteOn":
		*k = NoteOn
	default:
		return fmt.Errorf("unknown event kind %q", s)
	}
	return nil
}

// Event is one scheduled note boundary. Events are ephemeral: produced
// fresh per compile, identified only by their field values.
type Event struct {
	TimeSec  float64   `json:"timeSec"`
	TrackID  string    `json:"trackId"`
	Kind     EventKind `json:"kind"`
	Note     uint8     `json:"note"`
	Channel  uint8     `json:"channel"`
	Velocity uint8     `json:"velocity,omitempty"`
	Gain     float64   `json:"gain,omitempty"`
}

// Track is the scheduling projection of a timeline track: everything in
// seconds, derived fresh from the canonical tick-domain record before each
// compile and never persisted.
type Track struct {
	ID             string  `json:"id"`
	Enabled        bool    `json:"enabled"`
	Mute           bool    `json:"mute"`
	Solo           bool    `json:"solo"`
	Gain           float64 `json:"gain"`
	OffsetSec      float64 `json:"offsetSec"`
	RegionStartSec float64 `json:"regionStartSec"` // meaningful only when HasRegionStart
	RegionEndSec   float64 `json:"regionEndSec"`   // meaningful only when HasRegionEnd
	HasRegionStart bool    `json:"hasRegionStart"`
	HasRegionEnd   bool    `json:"hasRegionEnd"`
	MIDISourceID   string  `json:"midiSourceId"`
}

// Params is the full input to one compile.
type Params struct {
	Tracks       []Track
	Caches       map[string]*midi.NoteCache
	NowSec       float64
	LookAheadSec float64
	TempoMap     []tempo.MapEntry // master map, used when a cache has none
	BPM          float64          // final fallback tempo
	BeatsPerBar  int              // carried for consumers; not used in compilation
}

// Metrics reports how a compile went.
type Metrics struct {
	CompileMs float64 `json:"compileMs"`
	Count     int     `json:"count"`
}

// Batch is one compiled window of events, sorted by time with note-offs
// before note-ons on ties.
type Batch struct {
	Events         []Event `json:"events"`
	WindowStartSec float64 `json:"windowStartSec"`
	WindowEndSec   float64 `json:"windowEndSec"`
}

// CompileWindow produces the events of [NowSec, NowSec+LookAheadSec].
//
// Gating: disabled tracks are skipped; if any track is soloed only soloed
// tracks play (solo overrides mute); otherwise muted tracks are skipped.
// Tracks whose MIDI source has no cache entry yet are skipped silently.
// A malformed track degrades to being skipped; it never aborts the window.
func CompileWindow(p Params) Batch {
	lookahead := math.Max(0, p.LookAheadSec)
	windowStart := p.NowSec
	windowEnd := p.NowSec + lookahead

	batch := Batch{
		Events:         make([]Event, 0),
		WindowStartSec: windowStart,
		WindowEndSec:   windowEnd,
	}

	anySolo := false
	for _, tr := range p.Tracks {
		if tr.Enabled && tr.Solo {
			anySolo = true
			break
		}
	}

	fallbackSPB := tempo.FallbackSecPerBeat(p.BPM)

	for _, tr := range p.Tracks {
		if !tr.Enabled {
			continue
		}
		if anySolo {
			if !tr.Solo {
				continue
			}
		} else if tr.Mute {
			continue
		}
		if tr.MIDISourceID == "" {
			continue
		}
		cache := p.Caches[tr.MIDISourceID]
		if cache == nil {
			continue // not loaded yet; expected, not an error
		}

		tempoMap := cache.TempoMap
		if len(tempoMap) == 0 {
			tempoMap = p.TempoMap
		}

		regionStart := math.Inf(-1)
		if tr.HasRegionStart {
			regionStart = tr.RegionStartSec
		}
		regionEnd := math.Inf(1)
		if tr.HasRegionEnd {
			regionEnd = tr.RegionEndSec
		}
		if regionEnd < regionStart {
			continue // degenerate region, nothing can schedule
		}

		ppq := cache.PPQ
		if ppq <= 0 {
			ppq = tempo.TicksPerQuarter
		}

		for _, note := range cache.Notes {
			startBeat, endBeat := note.StartBeat, note.EndBeat
			if endBeat <= startBeat {
				// Beat positions absent; derive from ticks.
				startBeat = note.StartTicks / ppq
				endBeat = note.EndTicks / ppq
				if endBeat <= startBeat {
					continue
				}
			}

			startSec := tempo.BeatsToSeconds(tempoMap, startBeat, fallbackSPB) + tr.OffsetSec
			endSec := tempo.BeatsToSeconds(tempoMap, endBeat, fallbackSPB) + tr.OffsetSec

			// Clip to the region; a note that collapses is dropped whole.
			startSec = math.Max(startSec, regionStart)
			endSec = math.Min(endSec, regionEnd)
			if endSec <= startSec {
				continue
			}

			// Head and tail are windowed independently: a note can
			// contribute only its off if its on was in a prior window.
			if startSec >= windowStart && startSec <= windowEnd {
				batch.Events = append(batch.Events, Event{
					TimeSec:  startSec,
					TrackID:  tr.ID,
					Kind:     NoteOn,
					Note:     note.Key,
					Channel:  note.Channel,
					Velocity: note.Velocity,
					Gain:     tr.Gain,
				})
			}
			if endSec >= windowStart && endSec <= windowEnd {
				batch.Events = append(batch.Events, Event{
					TimeSec: endSec,
					TrackID: tr.ID,
					Kind:    NoteOff,
					Note:    note.Key,
					Channel: note.Channel,
					Gain:    tr.Gain,
				})
			}
		}
	}

	sort.SliceStable(batch.Events, func(i, j int) bool {
		a, b := batch.Events[i], batch.Events[j]
		if a.TimeSec != b.TimeSec {
			return a.TimeSec < b.TimeSec
		}
		return a.Kind < b.Kind // NoteOff strictly before NoteOn
	})

	return batch
}

// CompileWindowTimed wraps CompileWindow with wall-clock metrics for the
// actor and transport layers.
func CompileWindowTimed(p Params) (Batch, Metrics) {
	start := time.Now()
	batch := CompileWindow(p)
	return batch, Metrics{
		CompileMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Count:     len(batch.Events),
	}
}
