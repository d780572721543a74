// SPDX-License-Identifier: MIT
/*
Package midi loads Standard MIDI Files into per-source note caches: absolute
note intervals in the engine's canonical tick domain plus the file's tempo
map projected into seconds. The schedule compiler consumes these caches;
nothing here touches MIDI hardware.
*/
package midi

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"vizsync/internal/tempo"
)

// Note is one note interval. Positions are kept in both the canonical tick
// domain and the beat domain; schedulers prefer beats and fall back to
// deriving them from ticks.
type Note struct {
	StartTicks float64 // Canonical 960-PPQ ticks.
	EndTicks   float64
	StartBeat  float64
	EndBeat    float64
	Key        uint8
	Channel    uint8
	Velocity   uint8
}

// NoteCache is the parsed content of one MIDI source.
type NoteCache struct {
	SourceID      string
	PPQ           float64 // Canonical resolution the note ticks are in.
	Notes         []Note  // Sorted by StartTicks.
	TempoMap      []tempo.MapEntry
	DurationTicks float64
}

// tempoChange is a raw tempo event at a file-tick position, pre-integration.
type tempoChange struct {
	tick   float64 // file ticks
	micros float64
}

// LoadFile reads an SMF from disk into a note cache. The source id defaults
// to the path.
func LoadFile(path string) (*NoteCache, error) {
	data, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("midi: reading %s: %w", path, err)
	}
	return FromSMF(data, path)
}

// Read parses an SMF stream into a note cache.
func Read(r io.Reader, sourceID string) (*NoteCache, error) {
	data, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("midi: reading %s: %w", sourceID, err)
	}
	return FromSMF(data, sourceID)
}

// FromSMF converts a parsed SMF into a note cache. File ticks are rescaled
// to the canonical PPQ so every cache speaks the same tick resolution;
// velocity-zero note-ons are treated as note-offs per common practice.
func FromSMF(data *smf.SMF, sourceID string) (*NoteCache, error) {
	metric, ok := data.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("midi: %s uses unsupported SMPTE time format", sourceID)
	}
	filePPQ := float64(metric)
	if filePPQ <= 0 {
		filePPQ = tempo.TicksPerQuarter
	}
	scale := tempo.TicksPerQuarter / filePPQ

	type pending struct {
		startTick float64
		velocity  uint8
	}

	cache := &NoteCache{
		SourceID: sourceID,
		PPQ:      tempo.TicksPerQuarter,
	}
	var changes []tempoChange
	maxTick := 0.0

	for _, track := range data.Tracks {
		var tick uint32
		open := make(map[[2]uint8]pending)

		for _, ev := range track {
			tick += ev.Delta
			fileTick := float64(tick)
			if fileTick > maxTick {
				maxTick = fileTick
			}

			var ch, key, vel uint8
			var bpm float64
			switch {
			case ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0:
				open[[2]uint8{ch, key}] = pending{startTick: fileTick, velocity: vel}
			case ev.Message.GetNoteOff(&ch, &key, &vel) ||
				(ev.Message.GetNoteOn(&ch, &key, &vel) && vel == 0):
				id := [2]uint8{ch, key}
				start, found := open[id]
				if !found {
					continue // off without on, skip
				}
				delete(open, id)
				if fileTick <= start.startTick {
					continue // zero-length, drop
				}
				cache.Notes = append(cache.Notes, Note{
					StartTicks: start.startTick * scale,
					EndTicks:   fileTick * scale,
					StartBeat:  start.startTick / filePPQ,
					EndBeat:    fileTick / filePPQ,
					Key:        key,
					Channel:    ch,
					Velocity:   start.velocity,
				})
			case ev.Message.GetMetaTempo(&bpm):
				if bpm > 0 {
					changes = append(changes, tempoChange{tick: fileTick, micros: 60e6 / bpm})
				}
			}
		}

		// Close note-ons left hanging at end of track.
		for id, start := range open {
			if maxTick > start.startTick {
				cache.Notes = append(cache.Notes, Note{
					StartTicks: start.startTick * scale,
					EndTicks:   maxTick * scale,
					StartBeat:  start.startTick / filePPQ,
					EndBeat:    maxTick / filePPQ,
					Key:        id[1],
					Channel:    id[0],
					Velocity:   start.velocity,
				})
			}
		}
	}

	sort.Slice(cache.Notes, func(i, j int) bool {
		return cache.Notes[i].StartTicks < cache.Notes[j].StartTicks
	})
	cache.DurationTicks = maxTick * scale
	cache.TempoMap = integrateTempoChanges(changes, filePPQ)
	return cache, nil
}

// integrateTempoChanges converts tick-positioned tempo events into the
// second-domain map the conversion utilities consume. Events are walked in
// tick order, accumulating elapsed seconds segment by segment; files with
// no tempo events fall back to the conventional 120 BPM default.
func integrateTempoChanges(changes []tempoChange, filePPQ float64) []tempo.MapEntry {
	sort.Slice(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })

	out := []tempo.MapEntry{{TimeSec: 0, MicrosPerQuarter: tempo.DefaultMicrosPerQuarter}}
	if len(changes) > 0 && changes[0].tick == 0 {
		out[0].MicrosPerQuarter = changes[0].micros
		changes = changes[1:]
	}

	timeSec := 0.0
	lastTick := 0.0
	current := out[0].MicrosPerQuarter
	for _, ch := range changes {
		if ch.tick <= lastTick {
			// Same-tick change: the later event wins in place.
			if len(out) > 0 && ch.tick == lastTick {
				out[len(out)-1].MicrosPerQuarter = ch.micros
				current = ch.micros
			}
			continue
		}
		timeSec += (ch.tick - lastTick) / filePPQ * (current / 1e6)
		lastTick = ch.tick
		current = ch.micros
		out = append(out, tempo.MapEntry{TimeSec: timeSec, MicrosPerQuarter: ch.micros})
	}
	return out
}
