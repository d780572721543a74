// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"vizsync/internal/playback"
)

// StreamClock derives monotonic seconds from a running PortAudio output
// stream. The callback counts frames the device actually consumed, so time
// advances at the DAC's rate rather than the OS scheduler's. The stream
// emits silence; it exists only to drive the clock.
type StreamClock struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	frames     atomic.Int64
}

// NewStreamClock opens a default-device output stream at the given rate.
// Initialize must have been called first.
func NewStreamClock(sampleRate float64, framesPerBuffer int) (*StreamClock, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("stream clock: invalid sample rate %.1f", sampleRate)
	}
	c := &StreamClock{
		sampleRate: sampleRate,
		channels:   2,
	}
	stream, err := portaudio.OpenDefaultStream(0, c.channels, sampleRate, framesPerBuffer, c.process)
	if err != nil {
		return nil, fmt.Errorf("stream clock: open stream: %w", err)
	}
	c.stream = stream
	return c, nil
}

// process runs on the audio thread. Pre-allocated state only.
func (c *StreamClock) process(out []float32) {
	for i := range out {
		out[i] = 0
	}
	c.frames.Add(int64(len(out) / c.channels))
}

// Start begins the stream; the clock advances from here.
func (c *StreamClock) Start() error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("stream clock: start: %w", err)
	}
	return nil
}

// Stop halts the stream without losing the frame count.
func (c *StreamClock) Stop() error {
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("stream clock: stop: %w", err)
	}
	return nil
}

// NowSec reports elapsed device time in seconds.
func (c *StreamClock) NowSec() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Close stops and releases the stream.
func (c *StreamClock) Close() error {
	if c.stream == nil {
		return nil
	}
	c.stream.Stop()
	err := c.stream.Close()
	c.stream = nil
	return err
}

var _ playback.Clock = (*StreamClock)(nil)
