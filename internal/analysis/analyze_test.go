// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"math"
	"testing"

	"vizsync/internal/feature"
	"vizsync/pkg/utils"
)

const analyzeSampleRate = 44100.0

func constantSignal(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestAnalyzeProducesTracksForAllCalculators(t *testing.T) {
	reg := NewDefaultRegistry()
	cache, err := Analyze(context.Background(), reg, Request{
		SourceID:   "src-1",
		Samples:    constantSignal(44100, 0.5),
		SampleRate: analyzeSampleRate,
		Profile:    feature.Profile{ID: "default", WindowSize: 2048, HopSize: 512},
		BPM:        120,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if cache.AudioSourceID != "src-1" {
		t.Errorf("AudioSourceID = %q", cache.AudioSourceID)
	}
	wantFrames := (44100-1)/512 + 1
	if cache.FrameCount != wantFrames {
		t.Errorf("FrameCount = %d, want %d", cache.FrameCount, wantFrames)
	}

	for _, key := range []string{"rms::default", "waveform::default", "bands::default"} {
		tr, ok := cache.Tracks[key]
		if !ok {
			t.Fatalf("missing track %q", key)
		}
		if tr.FrameCount != wantFrames {
			t.Errorf("%s FrameCount = %d, want %d", key, tr.FrameCount, wantFrames)
		}
		if len(tr.Data) != tr.FrameCount*tr.Channels {
			t.Errorf("%s data length %d != frames*channels %d", key, len(tr.Data), tr.FrameCount*tr.Channels)
		}
		if tr.AnalysisProfileID != "default" {
			t.Errorf("%s profile = %q", key, tr.AnalysisProfileID)
		}
	}

	// Hop spacing: 512 samples at 44.1kHz, 120 BPM, 960 PPQ.
	wantHopSec := 512.0 / analyzeSampleRate
	wantHopTicks := wantHopSec / 0.5 * 960
	if math.Abs(cache.HopSeconds-wantHopSec) > 1e-12 {
		t.Errorf("HopSeconds = %v, want %v", cache.HopSeconds, wantHopSec)
	}
	if math.Abs(cache.HopTicks-wantHopTicks) > 1e-9 {
		t.Errorf("HopTicks = %v, want %v", cache.HopTicks, wantHopTicks)
	}

	// Version bookkeeping mirrors the registry.
	for id, v := range reg.Versions() {
		if cache.Params.CalculatorVersions[id] != v {
			t.Errorf("CalculatorVersions[%s] = %d, want %d", id, cache.Params.CalculatorVersions[id], v)
		}
	}
}

func TestAnalyzeRMSOfConstantSignal(t *testing.T) {
	reg := NewDefaultRegistry()
	cache, err := Analyze(context.Background(), reg, Request{
		SourceID:      "src",
		Samples:       constantSignal(8192, 0.25),
		SampleRate:    analyzeSampleRate,
		Profile:       feature.Profile{WindowSize: 1024, HopSize: 256},
		BPM:           120,
		CalculatorIDs: []string{"rms"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tr := cache.Tracks["rms::default"]
	if tr == nil {
		t.Fatalf("missing rms track: %v", cache.Tracks)
	}
	// Interior frames see a full window of the constant: RMS = |value|.
	if got := tr.Data[0]; math.Abs(got-0.25) > 1e-12 {
		t.Errorf("RMS frame 0 = %v, want 0.25", got)
	}
	if len(cache.Tracks) != 1 {
		t.Errorf("calculator filter ignored: %v", keysOf(cache.Tracks))
	}
}

func TestAnalyzeWaveformPeaks(t *testing.T) {
	reg := NewDefaultRegistry()
	samples := make([]float64, 2048)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * float64(i) / 64)
	}
	cache, err := Analyze(context.Background(), reg, Request{
		SourceID:      "src",
		Samples:       samples,
		SampleRate:    analyzeSampleRate,
		Profile:       feature.Profile{WindowSize: 512, HopSize: 512},
		BPM:           120,
		CalculatorIDs: []string{"waveform-peaks"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tr := cache.Tracks["waveform::default"]
	if tr == nil || tr.Channels != 2 {
		t.Fatalf("waveform track = %+v", tr)
	}
	lo, hi := tr.Data[0], tr.Data[1]
	if lo > -0.99 || hi < 0.99 {
		t.Errorf("first frame peaks = (%v, %v), want near (-1, 1)", lo, hi)
	}
	if tr.ChannelAliases[0] != "min" || tr.ChannelAliases[1] != "max" {
		t.Errorf("aliases = %v", tr.ChannelAliases)
	}
}

func TestAnalyzeBandEnergySeparatesBands(t *testing.T) {
	reg := NewDefaultRegistry()
	// 100 Hz tone: energy should land in "bass", not "treble".
	samples := utils.GenerateSineWave(8192, analyzeSampleRate, 100)
	cache, err := Analyze(context.Background(), reg, Request{
		SourceID:      "src",
		Samples:       samples,
		SampleRate:    analyzeSampleRate,
		Profile:       feature.Profile{WindowSize: 4096, HopSize: 4096},
		BPM:           120,
		CalculatorIDs: []string{"band-energy"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tr := cache.Tracks["bands::default"]
	if tr == nil || tr.Channels != 6 {
		t.Fatalf("bands track = %+v", tr)
	}
	bass := tr.Data[1]   // "bass" channel
	treble := tr.Data[5] // "treble" channel
	if bass <= treble {
		t.Errorf("bass %v not above treble %v for a 100 Hz tone", bass, treble)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	reg := NewDefaultRegistry()
	if _, err := Analyze(context.Background(), reg, Request{SampleRate: 0}); err == nil {
		t.Error("zero sample rate accepted")
	}
	if _, err := Analyze(context.Background(), reg, Request{
		SampleRate:    analyzeSampleRate,
		Samples:       constantSignal(128, 0),
		CalculatorIDs: []string{"missing"},
	}); err == nil {
		t.Error("unknown calculator id accepted")
	}
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	reg := NewDefaultRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, reg, Request{
		SourceID:   "src",
		Samples:    constantSignal(1 << 20, 0.1),
		SampleRate: analyzeSampleRate,
		Profile:    feature.Profile{WindowSize: 2048, HopSize: 64},
		BPM:        120,
	})
	if err == nil {
		t.Error("cancelled analysis returned no error")
	}
}

func keysOf(m map[string]*feature.Track) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
