// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"

	"vizsync/internal/feature"
	"vizsync/internal/tempo"
)

// Request describes one analysis run over a decoded mono buffer.
type Request struct {
	SourceID   string
	Samples    []float64 // Mono samples in [-1, 1].
	SampleRate float64
	Profile    feature.Profile // Window/hop configuration; ID stamps the tracks.
	BPM        float64         // Used to derive hop spacing in ticks.

	// CalculatorIDs limits the run to specific calculators. Empty means
	// every registered one.
	CalculatorIDs []string
}

// Analyze frames the request's samples at the profile's hop and runs the
// selected calculators, producing an immutable cache fragment ready for
// MergeCaches. The context is checked between frames so a cancelled run
// stops promptly instead of finishing a long buffer.
func Analyze(ctx context.Context, reg *Registry, req Request) (*feature.Cache, error) {
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %v", req.SampleRate)
	}

	profile := req.Profile
	if profile.ID == "" {
		profile.ID = feature.DefaultProfileID
	}
	if profile.WindowSize <= 0 {
		profile.WindowSize = 2048
	}
	if profile.HopSize <= 0 {
		profile.HopSize = profile.WindowSize / 4
	}
	if profile.HopSize <= 0 {
		profile.HopSize = 1
	}

	ids := req.CalculatorIDs
	if len(ids) == 0 {
		ids = reg.IDs()
	}

	hopSec := float64(profile.HopSize) / req.SampleRate
	hopTicks := hopSec / tempo.FallbackSecPerBeat(req.BPM) * tempo.TicksPerQuarter
	frameCount := 0
	if len(req.Samples) > 0 {
		frameCount = (len(req.Samples)-1)/profile.HopSize + 1
	}

	cache := &feature.Cache{
		Version:       1,
		AudioSourceID: req.SourceID,
		HopTicks:      hopTicks,
		HopSeconds:    hopSec,
		FrameCount:    frameCount,
		Params: feature.AnalysisParams{
			WindowSize:         profile.WindowSize,
			HopSize:            profile.HopSize,
			SampleRate:         req.SampleRate,
			CalculatorVersions: make(map[string]int, len(ids)),
		},
		Profiles:         map[string]feature.Profile{profile.ID: profile},
		DefaultProfileID: profile.ID,
		Tracks:           make(map[string]*feature.Track, len(ids)),
	}

	for _, id := range ids {
		calc, ok := reg.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("analysis: unknown calculator id %q", id)
		}

		data := make([]float64, 0, frameCount*calc.Channels())
		for f := 0; f < frameCount; f++ {
			if f%256 == 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
				}
			}
			start := f * profile.HopSize
			end := start + profile.WindowSize
			if end > len(req.Samples) {
				end = len(req.Samples)
			}
			data = calc.Frame(data, req.Samples[start:end], req.SampleRate)
		}

		key := feature.BuildTrackKey(calc.FeatureKey(), profile.ID)
		cache.Tracks[key] = &feature.Track{
			Key:               key,
			CalculatorID:      calc.ID(),
			Version:           calc.Version(),
			FrameCount:        frameCount,
			Channels:          calc.Channels(),
			HopTicks:          hopTicks,
			HopSeconds:        hopSec,
			Format:            calc.Format(),
			Data:              data,
			ChannelAliases:    calc.ChannelAliases(),
			AnalysisProfileID: profile.ID,
		}
		cache.Params.CalculatorVersions[calc.ID()] = calc.Version()
	}

	return cache, nil
}
