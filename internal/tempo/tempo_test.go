// SPDX-License-Identifier: MIT
package tempo

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= tol*scale
}

func TestConstantMapConversions(t *testing.T) {
	// Single entry at 120 BPM: one beat = 0.5s.
	m := []MapEntry{{TimeSec: 0, MicrosPerQuarter: 500000}}

	tests := []struct {
		sec   float64
		beats float64
	}{
		{0, 0},
		{0.5, 1},
		{1.0, 2},
		{1.5, 3},
		{10, 20},
	}
	for _, tt := range tests {
		if got := SecondsToBeats(m, tt.sec, 0.6); !approxEqual(got, tt.beats, 1e-9) {
			t.Errorf("SecondsToBeats(%v) = %v, want %v", tt.sec, got, tt.beats)
		}
		if got := BeatsToSeconds(m, tt.beats, 0.6); !approxEqual(got, tt.sec, 1e-9) {
			t.Errorf("BeatsToSeconds(%v) = %v, want %v", tt.beats, got, tt.sec)
		}
	}
}

func TestPiecewiseMapConversions(t *testing.T) {
	// 120 BPM for the first 2s (4 beats), then 60 BPM.
	m := []MapEntry{
		{TimeSec: 0, MicrosPerQuarter: 500000},
		{TimeSec: 2, MicrosPerQuarter: 1000000},
	}

	tests := []struct {
		sec   float64
		beats float64
	}{
		{0, 0},
		{1, 2},
		{2, 4},     // boundary
		{3, 5},     // one 60-BPM beat past the boundary
		{4.5, 6.5}, // deep into the second segment
	}
	for _, tt := range tests {
		if got := SecondsToBeats(m, tt.sec, 0.5); !approxEqual(got, tt.beats, 1e-9) {
			t.Errorf("SecondsToBeats(%v) = %v, want %v", tt.sec, got, tt.beats)
		}
		if got := BeatsToSeconds(m, tt.beats, 0.5); !approxEqual(got, tt.sec, 1e-9) {
			t.Errorf("BeatsToSeconds(%v) = %v, want %v", tt.beats, got, tt.sec)
		}
	}
}

func TestEmptyMapUsesFallback(t *testing.T) {
	if got := SecondsToBeats(nil, 3.0, 0.5); !approxEqual(got, 6.0, 1e-9) {
		t.Errorf("SecondsToBeats fallback = %v, want 6", got)
	}
	if got := BeatsToSeconds(nil, 6.0, 0.5); !approxEqual(got, 3.0, 1e-9) {
		t.Errorf("BeatsToSeconds fallback = %v, want 3", got)
	}
	// Degenerate fallback clamps rather than dividing by zero.
	if got := SecondsToBeats(nil, 1.0, 0); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("SecondsToBeats with zero fallback = %v", got)
	}
}

// Extrapolation outside the mapped range continues the boundary segment's
// tempo. This pins current behavior; see DESIGN.md for the decision record.
func TestExtrapolationUsesBoundaryTempo(t *testing.T) {
	m := []MapEntry{
		{TimeSec: 1, MicrosPerQuarter: 500000},  // 120 BPM from 1s
		{TimeSec: 3, MicrosPerQuarter: 1000000}, // 60 BPM from 3s
	}

	// Before the first entry: first segment's tempo extends back to t=0.
	if got := SecondsToBeats(m, 0.5, 0.25); !approxEqual(got, 1.0, 1e-9) {
		t.Errorf("pre-map SecondsToBeats = %v, want 1", got)
	}
	if got := SecondsToBeats(m, -0.5, 0.25); !approxEqual(got, -1.0, 1e-9) {
		t.Errorf("negative SecondsToBeats = %v, want -1", got)
	}

	// Past the last entry: last segment's tempo continues.
	// Beats at 3s = 3/0.5 = 6; each further second adds one 60-BPM beat.
	if got := SecondsToBeats(m, 10, 0.25); !approxEqual(got, 13, 1e-9) {
		t.Errorf("post-map SecondsToBeats = %v, want 13", got)
	}
	if got := BeatsToSeconds(m, 13, 0.25); !approxEqual(got, 10, 1e-9) {
		t.Errorf("post-map BeatsToSeconds = %v, want 10", got)
	}
}

func TestRoundTripProperty(t *testing.T) {
	maps := [][]MapEntry{
		nil,
		{{TimeSec: 0, MicrosPerQuarter: 500000}},
		{{TimeSec: 0, MicrosPerQuarter: 500000}, {TimeSec: 2, MicrosPerQuarter: 1000000}},
		{{TimeSec: 0.7, MicrosPerQuarter: 420000}, {TimeSec: 1.3, MicrosPerQuarter: 810000}, {TimeSec: 9.9, MicrosPerQuarter: 333333}},
	}
	beats := []float64{-4, -0.01, 0, 0.001, 1, 2.5, 7, 33.33, 1000}

	for mi, m := range maps {
		for _, b := range beats {
			sec := BeatsToSeconds(m, b, 0.6)
			got := SecondsToBeats(m, sec, 0.6)
			if !approxEqual(got, b, 1e-6) {
				t.Errorf("map %d: round trip of %v beats = %v (via %vs)", mi, b, got, sec)
			}
		}
	}
}

func TestNonMonotonicEntriesTolerated(t *testing.T) {
	// A mis-ordered entry must not rewind accumulated time.
	m := []MapEntry{
		{TimeSec: 0, MicrosPerQuarter: 500000},
		{TimeSec: 5, MicrosPerQuarter: 1000000},
		{TimeSec: 2, MicrosPerQuarter: 250000}, // out of order, ignored
	}
	got := SecondsToBeats(m, 6, 0.5)
	if math.IsNaN(got) || got <= 0 {
		t.Fatalf("SecondsToBeats with bad map = %v", got)
	}
	back := BeatsToSeconds(m, got, 0.5)
	if !approxEqual(back, 6, 1e-6) {
		t.Errorf("round trip through bad map: %v != 6", back)
	}
}

func TestTickProjection(t *testing.T) {
	m := []MapEntry{{TimeSec: 0, MicrosPerQuarter: 500000}}
	// Two beats = 1920 ticks at 960 PPQ = 1 second at 120 BPM.
	if got := SecondsToTicks(m, 1.0, 0.5); !approxEqual(got, 1920, 1e-9) {
		t.Errorf("SecondsToTicks = %v, want 1920", got)
	}
	if got := TicksToSeconds(m, 1920, 0.5); !approxEqual(got, 1.0, 1e-9) {
		t.Errorf("TicksToSeconds = %v, want 1", got)
	}
}

func TestEntryBPM(t *testing.T) {
	tests := []struct {
		micros float64
		bpm    float64
	}{
		{500000, 120},
		{1000000, 60},
		{0, 120}, // degenerate entry falls back to the MIDI default
	}
	for _, tt := range tests {
		if got := (MapEntry{MicrosPerQuarter: tt.micros}).BPM(); !approxEqual(got, tt.bpm, 1e-9) {
			t.Errorf("BPM(%v) = %v, want %v", tt.micros, got, tt.bpm)
		}
	}
}

func BenchmarkSecondsToBeats(b *testing.B) {
	m := make([]MapEntry, 0, 32)
	for i := 0; i < 32; i++ {
		m = append(m, MapEntry{TimeSec: float64(i) * 2, MicrosPerQuarter: 500000 + float64(i)*1000})
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = SecondsToBeats(m, 55.5, 0.5)
	}
}
