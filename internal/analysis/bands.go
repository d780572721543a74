// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"vizsync/pkg/bitint"
)

// frequencyBand defines the name and frequency range for an energy band.
type frequencyBand struct {
	name   string
	lowHz  float64
	highHz float64
}

// bandTable is the fixed set of bands the calculator reports, one output
// channel each. The treble cap is clamped to Nyquist at analysis time.
var bandTable = []frequencyBand{
	{name: "sub", lowHz: 20, highHz: 60},
	{name: "bass", lowHz: 60, highHz: 250},
	{name: "lowMid", lowHz: 250, highHz: 500},
	{name: "mid", lowHz: 500, highHz: 2000},
	{name: "highMid", lowHz: 2000, highHz: 4000},
	{name: "treble", lowHz: 4000, highHz: math.Inf(1)},
}

// bandWorkspace holds pre-allocated FFT buffers, rebuilt only when the
// window size changes.
type bandWorkspace struct {
	fftSize   int
	fftObj    *fourier.FFT
	input     []float64
	fftOutput []complex128
	magnitude []float64
	window    []float64
}

// BandEnergyCalculator produces normalized energy per frequency band from a
// windowed FFT of each frame.
type BandEnergyCalculator struct {
	workspace bandWorkspace
}

var _ Calculator = (*BandEnergyCalculator)(nil)

func NewBandEnergyCalculator() *BandEnergyCalculator { return &BandEnergyCalculator{} }

func (*BandEnergyCalculator) FeatureKey() string { return "bands" }
func (*BandEnergyCalculator) ID() string         { return "band-energy" }
func (*BandEnergyCalculator) Version() int       { return 2 }
func (*BandEnergyCalculator) Channels() int      { return len(bandTable) }
func (*BandEnergyCalculator) Format() string     { return "bands" }

func (*BandEnergyCalculator) ChannelAliases() []string {
	aliases := make([]string, len(bandTable))
	for i, b := range bandTable {
		aliases[i] = b.name
	}
	return aliases
}

// prepare (re)builds the workspace for the given window length. The FFT
// size is the next power of two so arbitrary hop/window profiles still get
// a valid transform, with zero padding filling the remainder.
func (c *BandEnergyCalculator) prepare(windowLen int) {
	fftSize := bitint.NextPowerOfTwo(windowLen)
	if c.workspace.fftSize == fftSize {
		return
	}
	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	window.Hann(coeffs)

	c.workspace = bandWorkspace{
		fftSize:   fftSize,
		fftObj:    fourier.NewFFT(fftSize),
		input:     make([]float64, fftSize),
		fftOutput: make([]complex128, fftSize/2+1),
		magnitude: make([]float64, fftSize/2+1),
		window:    coeffs,
	}
}

func (c *BandEnergyCalculator) Frame(dst []float64, win []float64, sampleRate float64) []float64 {
	if len(win) == 0 || sampleRate <= 0 {
		for range bandTable {
			dst = append(dst, 0)
		}
		return dst
	}
	c.prepare(len(win))
	ws := &c.workspace

	for i := range ws.input {
		if i < len(win) {
			ws.input[i] = win[i] * ws.window[i]
		} else {
			ws.input[i] = 0 // zero padding up to the FFT size
		}
	}

	ws.fftObj.Coefficients(ws.fftOutput, ws.input)
	for i, coeff := range ws.fftOutput {
		ws.magnitude[i] = cmplx.Abs(coeff)
	}

	nyquist := sampleRate / 2
	binHz := sampleRate / float64(ws.fftSize)
	for _, band := range bandTable {
		high := math.Min(band.highHz, nyquist)
		energy := 0.0
		bins := 0
		for i, mag := range ws.magnitude {
			freq := float64(i) * binHz
			if freq >= band.lowHz && freq < high {
				energy += mag * mag
				bins++
			}
		}
		avg := 0.0
		if bins > 0 {
			avg = energy / float64(bins)
		}
		// Scale into a 0..1 display range and clamp.
		dst = append(dst, math.Min(1.0, math.Sqrt(avg)*50.0/float64(ws.fftSize)))
	}
	return dst
}
