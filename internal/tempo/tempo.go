// SPDX-License-Identifier: MIT
/*
Package tempo implements conversions between wall-clock seconds, musical
beats and ticks under a piecewise tempo map.

A tempo map is an ascending list of (time, microseconds-per-quarter) entries.
Each entry starts a segment of constant tempo that runs until the next entry.
Queries before the first entry and after the last one extrapolate with the
boundary segment's tempo; an empty map degrades to plain constant-tempo
arithmetic using a caller-supplied seconds-per-beat.

All positions elsewhere in the engine are expressed in ticks at a single
resolution, TicksPerQuarter. Seconds are a derived projection.
*/
package tempo

// TicksPerQuarter is the canonical pulses-per-quarter-note resolution.
// Every tick value in the engine is at this resolution; MIDI sources with a
// different file PPQ are converted at the ingestion boundary.
const TicksPerQuarter = 960

// DefaultMicrosPerQuarter is 120 BPM, the conventional MIDI default.
const DefaultMicrosPerQuarter = 500000

// minSecPerBeat guards divisions against zero or negative tempo values.
const minSecPerBeat = 1e-9

// MapEntry is one segment boundary of a piecewise tempo map.
type MapEntry struct {
	TimeSec          float64 `json:"time"`  // Segment start, in seconds.
	MicrosPerQuarter float64 `json:"tempo"` // Tempo from this point on, in µs per quarter note.
}

// BPM returns the entry's tempo in beats per minute.
func (e MapEntry) BPM() float64 {
	if e.MicrosPerQuarter <= 0 {
		return 60e6 / DefaultMicrosPerQuarter
	}
	return 60e6 / e.MicrosPerQuarter
}

// secPerBeat returns the entry's seconds-per-quarter-note, clamped positive.
func (e MapEntry) secPerBeat() float64 {
	spb := e.MicrosPerQuarter / 1e6
	if spb < minSecPerBeat {
		return DefaultMicrosPerQuarter / 1e6
	}
	return spb
}

// FallbackSecPerBeat converts a BPM value into seconds-per-beat, guarding
// against zero and negative inputs.
func FallbackSecPerBeat(bpm float64) float64 {
	if bpm < 1e-6 {
		bpm = 1e-6
	}
	return 60.0 / bpm
}

func clampSecPerBeat(spb float64) float64 {
	if spb < minSecPerBeat {
		return DefaultMicrosPerQuarter / 1e6
	}
	return spb
}

// SecondsToBeats converts a time position into beats under the map.
//
// The first segment's tempo is assumed to extend back to t=0, so beat zero
// always falls at time zero. Times past the last entry continue at the last
// segment's tempo. An empty map uses fallbackSecPerBeat throughout.
func SecondsToBeats(m []MapEntry, sec, fallbackSecPerBeat float64) float64 {
	if len(m) == 0 {
		return sec / clampSecPerBeat(fallbackSecPerBeat)
	}
	if sec <= m[0].TimeSec {
		return sec / m[0].secPerBeat()
	}

	t := m[0].TimeSec
	beats := t / m[0].secPerBeat()
	spb := m[0].secPerBeat()
	for _, e := range m[1:] {
		// Skip non-monotonic entries rather than rewinding.
		if e.TimeSec <= t {
			continue
		}
		if e.TimeSec >= sec {
			break
		}
		beats += (e.TimeSec - t) / spb
		t = e.TimeSec
		spb = e.secPerBeat()
	}
	return beats + (sec-t)/spb
}

// BeatsToSeconds converts a beat position into seconds under the map.
// Inverse of SecondsToBeats for any fixed map, to floating-point tolerance.
func BeatsToSeconds(m []MapEntry, beats, fallbackSecPerBeat float64) float64 {
	if len(m) == 0 {
		return beats * clampSecPerBeat(fallbackSecPerBeat)
	}

	firstBeats := m[0].TimeSec / m[0].secPerBeat()
	if beats <= firstBeats {
		return beats * m[0].secPerBeat()
	}

	t := m[0].TimeSec
	b := firstBeats
	spb := m[0].secPerBeat()
	for _, e := range m[1:] {
		if e.TimeSec <= t {
			continue
		}
		boundaryBeats := b + (e.TimeSec-t)/spb
		if boundaryBeats >= beats {
			break
		}
		b = boundaryBeats
		t = e.TimeSec
		spb = e.secPerBeat()
	}
	return t + (beats-b)*spb
}

// SecondsToTicks projects a time position onto the canonical tick domain.
func SecondsToTicks(m []MapEntry, sec, fallbackSecPerBeat float64) float64 {
	return SecondsToBeats(m, sec, fallbackSecPerBeat) * TicksPerQuarter
}

// TicksToSeconds projects a canonical tick position onto seconds.
func TicksToSeconds(m []MapEntry, ticks, fallbackSecPerBeat float64) float64 {
	return BeatsToSeconds(m, ticks/TicksPerQuarter, fallbackSecPerBeat)
}

// BeatsToTicks converts beats to canonical ticks.
func BeatsToTicks(beats float64) float64 { return beats * TicksPerQuarter }

// TicksToBeats converts canonical ticks to beats.
func TicksToBeats(ticks float64) float64 { return ticks / TicksPerQuarter }
