// SPDX-License-Identifier: MIT
package midi

import (
	"bytes"
	"math"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// buildSMF assembles an in-memory file at 480 file PPQ:
// tempo 120 at beat 0, tempo 60 at beat 2, one quarter note C4 from beat 0
// and one from beat 2, plus a velocity-0 "note off" pair.
func buildSMF(t *testing.T) *NoteCache {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(480, gomidi.NoteOff(0, 60))
	tr.Add(480, smf.MetaTempo(60)) // beat 2
	tr.Add(0, gomidi.NoteOn(1, 64, 80))
	tr.Add(480, gomidi.NoteOn(1, 64, 0)) // velocity 0 acts as note-off
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("adding track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("writing SMF: %v", err)
	}

	cache, err := Read(&buf, "test.mid")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return cache
}

func TestFromSMFNotesRescaledToCanonicalPPQ(t *testing.T) {
	cache := buildSMF(t)

	if cache.PPQ != 960 {
		t.Fatalf("PPQ = %v, want 960", cache.PPQ)
	}
	if len(cache.Notes) != 2 {
		t.Fatalf("notes = %d, want 2 (%+v)", len(cache.Notes), cache.Notes)
	}

	first := cache.Notes[0]
	if first.Key != 60 || first.Channel != 0 || first.Velocity != 100 {
		t.Errorf("first note identity = %+v", first)
	}
	// 480 file ticks at 480 file PPQ = 1 beat = 960 canonical ticks.
	if first.StartTicks != 0 || first.EndTicks != 960 {
		t.Errorf("first note ticks = [%v, %v], want [0, 960]", first.StartTicks, first.EndTicks)
	}
	if first.StartBeat != 0 || first.EndBeat != 1 {
		t.Errorf("first note beats = [%v, %v], want [0, 1]", first.StartBeat, first.EndBeat)
	}

	second := cache.Notes[1]
	if second.Key != 64 || second.Channel != 1 {
		t.Errorf("second note identity = %+v", second)
	}
	if second.StartBeat != 2 || second.EndBeat != 3 {
		t.Errorf("second note beats = [%v, %v], want [2, 3]", second.StartBeat, second.EndBeat)
	}
}

func TestFromSMFTempoMapIntegration(t *testing.T) {
	cache := buildSMF(t)

	if len(cache.TempoMap) != 2 {
		t.Fatalf("tempo map = %+v, want 2 entries", cache.TempoMap)
	}
	if cache.TempoMap[0].TimeSec != 0 || math.Abs(cache.TempoMap[0].MicrosPerQuarter-500000) > 1 {
		t.Errorf("entry 0 = %+v, want 120 BPM at 0s", cache.TempoMap[0])
	}
	// Two beats at 120 BPM elapse before the change: 1.0s, then 60 BPM.
	if math.Abs(cache.TempoMap[1].TimeSec-1.0) > 1e-9 {
		t.Errorf("entry 1 time = %v, want 1.0", cache.TempoMap[1].TimeSec)
	}
	if math.Abs(cache.TempoMap[1].MicrosPerQuarter-1000000) > 1 {
		t.Errorf("entry 1 tempo = %v, want 1000000", cache.TempoMap[1].MicrosPerQuarter)
	}
}

func TestFromSMFDefaultsTempoWhenAbsent(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 72, 90))
	tr.Add(960, gomidi.NoteOff(0, 72))
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("adding track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("writing SMF: %v", err)
	}

	cache, err := Read(&buf, "plain.mid")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(cache.TempoMap) != 1 || cache.TempoMap[0].MicrosPerQuarter != 500000 {
		t.Errorf("tempo map = %+v, want single 120 BPM entry", cache.TempoMap)
	}
	if cache.DurationTicks < 960 {
		t.Errorf("DurationTicks = %v, want >= 960", cache.DurationTicks)
	}
}
