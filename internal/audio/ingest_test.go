// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 44100, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func TestLoadWAVMonoNormalization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	// Half-scale positive, half-scale negative, zero.
	writeWAV(t, path, 1, []int{16384, -16384, 0})

	src, err := LoadWAV("", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.ID != "tone" {
		t.Errorf("id %q, want basename-derived %q", src.ID, "tone")
	}
	if src.SampleRate != 44100 || src.Channels != 1 {
		t.Errorf("format %0.f Hz / %d ch, want 44100 / 1", src.SampleRate, src.Channels)
	}
	want := []float64{0.5, -0.5, 0.0}
	if len(src.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(src.Samples), len(want))
	}
	for i, w := range want {
		if math.Abs(src.Samples[i]-w) > 1e-9 {
			t.Errorf("sample %d = %.6f, want %.4f", i, src.Samples[i], w)
		}
	}
}

func TestLoadWAVStereoMixdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// Frame 0: L=16384 R=0; frame 1: L=-16384 R=16384.
	writeWAV(t, path, 2, []int{16384, 0, -16384, 16384})

	src, err := LoadWAV("custom", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.ID != "custom" {
		t.Errorf("id %q, want explicit override", src.ID)
	}
	if src.Channels != 2 || len(src.Samples) != 2 {
		t.Fatalf("got %d ch, %d frames; want 2/2", src.Channels, len(src.Samples))
	}
	if math.Abs(src.Samples[0]-0.25) > 1e-9 {
		t.Errorf("frame 0 = %.6f, want 0.25", src.Samples[0])
	}
	if math.Abs(src.Samples[1]-0.0) > 1e-9 {
		t.Errorf("frame 1 = %.6f, want 0.0", src.Samples[1])
	}
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV("", path); err == nil {
		t.Error("expected an error for a non-WAV file")
	}
	if _, err := LoadWAV("", filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSourceDurationSec(t *testing.T) {
	src := &Source{SampleRate: 44100, Samples: make([]float64, 44100)}
	if math.Abs(src.DurationSec()-1.0) > 1e-9 {
		t.Errorf("duration %.4f, want 1.0", src.DurationSec())
	}
	if (&Source{}).DurationSec() != 0 {
		t.Error("zero-rate source should report zero duration")
	}
}
