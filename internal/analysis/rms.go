// SPDX-License-Identifier: MIT
package analysis

import "math"

// RMSCalculator produces one root-mean-square energy value per frame.
type RMSCalculator struct{}

var _ Calculator = (*RMSCalculator)(nil)

func NewRMSCalculator() *RMSCalculator { return &RMSCalculator{} }

func (*RMSCalculator) FeatureKey() string       { return "rms" }
func (*RMSCalculator) ID() string               { return "rms" }
func (*RMSCalculator) Version() int             { return 1 }
func (*RMSCalculator) Channels() int            { return 1 }
func (*RMSCalculator) ChannelAliases() []string { return nil }
func (*RMSCalculator) Format() string           { return "scalar" }

func (*RMSCalculator) Frame(dst []float64, window []float64, _ float64) []float64 {
	if len(window) == 0 {
		return append(dst, 0)
	}
	var sumSquare float64
	for _, sample := range window {
		sumSquare += sample * sample
	}
	return append(dst, math.Sqrt(sumSquare/float64(len(window))))
}
