// SPDX-License-Identifier: MIT
package config

// Boundary and default constants for the engine configuration.
const (
	DefaultBPM          = 120.0
	DefaultBeatsPerBar  = 4
	DefaultLookAheadSec = 0.5

	DefaultWindowSize = 2048
	DefaultHopSize    = 512

	DefaultSampleRate      = 44100 // CD-quality audio
	DefaultFramesPerBuffer = 512   // Balanced latency/performance
	DefaultDeviceID        = MinDeviceID

	DefaultWebSocketAddr = ":8080"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxWindowSize = 16384  // Maximum analysis window (power of 2)
)
