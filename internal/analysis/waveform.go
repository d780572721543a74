// SPDX-License-Identifier: MIT
package analysis

// WaveformCalculator produces per-frame min/max sample peaks, the pair a
// waveform display needs to draw one column per analysis frame.
type WaveformCalculator struct{}

var _ Calculator = (*WaveformCalculator)(nil)

func NewWaveformCalculator() *WaveformCalculator { return &WaveformCalculator{} }

func (*WaveformCalculator) FeatureKey() string       { return "waveform" }
func (*WaveformCalculator) ID() string               { return "waveform-peaks" }
func (*WaveformCalculator) Version() int             { return 1 }
func (*WaveformCalculator) Channels() int            { return 2 }
func (*WaveformCalculator) ChannelAliases() []string { return []string{"min", "max"} }
func (*WaveformCalculator) Format() string           { return "peaks" }

func (*WaveformCalculator) Frame(dst []float64, window []float64, _ float64) []float64 {
	if len(window) == 0 {
		return append(dst, 0, 0)
	}
	lo, hi := window[0], window[0]
	for _, sample := range window[1:] {
		if sample < lo {
			lo = sample
		}
		if sample > hi {
			hi = sample
		}
	}
	return append(dst, lo, hi)
}
