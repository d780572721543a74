// SPDX-License-Identifier: MIT
/*
Package audio handles audio I/O: WAV ingestion for offline analysis and a
PortAudio-backed output clock that playback can lock to.
*/
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	applog "vizsync/internal/log"
)

// Source is decoded audio ready for analysis: mono samples normalized to
// [-1, 1] regardless of the file's bit depth or channel count.
type Source struct {
	ID         string
	Path       string
	SampleRate float64
	Channels   int // channel count of the original file
	Samples    []float64
}

// DurationSec returns the source length in seconds.
func (s *Source) DurationSec() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / s.SampleRate
}

// LoadWAV decodes a WAV file into a mono Source. Multi-channel files are
// mixed down by averaging. The source ID defaults to the file's base name
// without extension when id is empty.
func LoadWAV(id, path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%q is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %q: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wav %q has no usable PCM data", path)
	}

	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	src := &Source{
		ID:         id,
		Path:       path,
		SampleRate: float64(buf.Format.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}
	applog.Infof("audio: loaded %q (%d ch, %.0f Hz, %.2fs)",
		path, channels, src.SampleRate, src.DurationSec())
	return src, nil
}
