// SPDX-License-Identifier: MIT
package feature

import "math"

// InterpMode selects how a fractional frame position is turned into a value.
type InterpMode int

const (
	// InterpLinear blends the two bracketing frames. The default.
	InterpLinear InterpMode = iota
	// InterpHold returns the frame at floor(index) without blending.
	InterpHold
	// InterpSpline applies a 4-point Catmull-Rom basis around the index.
	InterpSpline
)

// Channel alias names recognized by ChannelNamed.
const (
	ChannelLeft  = "left"
	ChannelRight = "right"
	ChannelAuto  = "auto"
	ChannelMix   = "mix"
)

type channelKind int

const (
	channelAll channelKind = iota // every channel, one value per channel
	channelIndex
	channelMixdown
)

// ChannelSelect picks which channel(s) of a multi-channel track to sample.
// The zero value selects all channels.
type ChannelSelect struct {
	kind  channelKind
	index int
	name  string
}

// ChannelAt selects a single channel by index.
func ChannelAt(index int) ChannelSelect {
	return ChannelSelect{kind: channelIndex, index: index}
}

// ChannelNamed selects a channel by alias ("left", "right", or any alias the
// track declares). "auto" and "mix" average all channels instead.
func ChannelNamed(name string) ChannelSelect {
	switch name {
	case ChannelAuto, ChannelMix, "":
		return ChannelSelect{kind: channelMixdown}
	case ChannelLeft:
		return ChannelSelect{kind: channelIndex, index: 0, name: name}
	case ChannelRight:
		return ChannelSelect{kind: channelIndex, index: 1, name: name}
	}
	return ChannelSelect{kind: channelIndex, name: name}
}

// ChannelMixed averages all channels into one lane.
func ChannelMixed() ChannelSelect {
	return ChannelSelect{kind: channelMixdown}
}

// SampleOptions controls interpolation, smoothing and channel selection.
// The zero value is linear interpolation over every channel, no smoothing.
type SampleOptions struct {
	Mode      InterpMode
	Smoothing int // N>0 averages the value with N frames on each side.
	Channel   ChannelSelect
}

// Frame is one sampled result: Values holds either one value per channel or
// a single selected/mixed lane, depending on the options.
type Frame struct {
	Values     []float64
	FrameIndex float64 // Fractional frame position the values were read at.
}

// usable reports whether the track has a shape the sampler can read.
func usable(tr *Track) bool {
	return tr != nil &&
		tr.FrameCount > 0 &&
		tr.Channels > 0 &&
		tr.HopTicks > 0 &&
		len(tr.Data) >= tr.FrameCount*tr.Channels
}

// resolveLane maps a ChannelSelect onto (lane index, mixdown flag). A named
// selector is matched against the track's channel aliases; unknown names and
// out-of-range indices fall back to mixdown so a bad selector degrades to a
// sensible value instead of failing.
func resolveLane(tr *Track, sel ChannelSelect) (int, bool) {
	switch sel.kind {
	case channelMixdown:
		return 0, true
	case channelIndex:
		idx := sel.index
		if sel.name != "" && sel.name != ChannelLeft && sel.name != ChannelRight {
			idx = -1
		}
		if sel.name != "" {
			for i, alias := range tr.ChannelAliases {
				if alias == sel.name {
					idx = i
					break
				}
			}
		}
		if idx < 0 || idx >= tr.Channels {
			return 0, true
		}
		return idx, false
	}
	return 0, false
}

// laneValue reads one frame of one lane, substituting silence outside the
// analyzed range. This zero padding is what makes visuals fade out cleanly
// past the ends of a track instead of holding the edge value.
func laneValue(tr *Track, lane int, mix bool, idx int) float64 {
	if idx < 0 || idx >= tr.FrameCount {
		return 0
	}
	base := idx * tr.Channels
	if !mix {
		return tr.Data[base+lane]
	}
	sum := 0.0
	for c := 0; c < tr.Channels; c++ {
		sum += tr.Data[base+c]
	}
	return sum / float64(tr.Channels)
}

// interpLane evaluates one lane at a fractional frame index.
func interpLane(tr *Track, lane int, mix bool, f float64, mode InterpMode) float64 {
	i := int(math.Floor(f))
	t := f - math.Floor(f)

	switch mode {
	case InterpHold:
		return laneValue(tr, lane, mix, i)
	case InterpSpline:
		p0 := laneValue(tr, lane, mix, i-1)
		p1 := laneValue(tr, lane, mix, i)
		p2 := laneValue(tr, lane, mix, i+1)
		p3 := laneValue(tr, lane, mix, i+2)
		return catmullRom(p0, p1, p2, p3, t)
	default:
		if t == 0 {
			return laneValue(tr, lane, mix, i)
		}
		v0 := laneValue(tr, lane, mix, i)
		v1 := laneValue(tr, lane, mix, i+1)
		return v0 + (v1-v0)*t
	}
}

// catmullRom evaluates the standard uniform Catmull-Rom basis at t in [0,1).
func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

// smoothedLane averages the interpolated value with its 2N neighbors, one
// hop apart, out-of-range neighbors contributing silence.
func smoothedLane(tr *Track, lane int, mix bool, f float64, mode InterpMode, n int) float64 {
	if n <= 0 {
		return interpLane(tr, lane, mix, f, mode)
	}
	sum := 0.0
	for k := -n; k <= n; k++ {
		sum += interpLane(tr, lane, mix, f+float64(k), mode)
	}
	return sum / float64(2*n+1)
}

// FrameInto samples the track at relTick (ticks relative to the track's
// analysis start) and writes the result into dst, returning the number of
// values written. dst must hold at least the track's channel count (or 1
// when a selector narrows to a single lane). The second return is false when
// the track is unusable or dst is too small.
//
// This is the per-render-frame hot path: no allocations, O(window) work.
func FrameInto(dst []float64, tr *Track, relTick float64, opts SampleOptions) (int, bool) {
	if !usable(tr) {
		return 0, false
	}
	f := relTick / tr.HopTicks

	if opts.Channel.kind != channelAll {
		if len(dst) < 1 {
			return 0, false
		}
		lane, mix := resolveLane(tr, opts.Channel)
		dst[0] = smoothedLane(tr, lane, mix, f, opts.Mode, opts.Smoothing)
		return 1, true
	}

	if len(dst) < tr.Channels {
		return 0, false
	}
	for c := 0; c < tr.Channels; c++ {
		dst[c] = smoothedLane(tr, c, false, f, opts.Mode, opts.Smoothing)
	}
	return tr.Channels, true
}

// SampleFrame is the allocating convenience form of FrameInto.
func SampleFrame(tr *Track, relTick float64, opts SampleOptions) (Frame, bool) {
	if !usable(tr) {
		return Frame{}, false
	}
	n := tr.Channels
	if opts.Channel.kind != channelAll {
		n = 1
	}
	out := Frame{
		Values:     make([]float64, n),
		FrameIndex: relTick / tr.HopTicks,
	}
	if _, ok := FrameInto(out.Values, tr, relTick, opts); !ok {
		return Frame{}, false
	}
	return out, true
}

// RangeResult is a window of sampled frames. WindowStartTick/WindowEndTick
// echo the (possibly swapped) query while TrackStartTick/TrackEndTick give
// the analyzed bounds, so a consumer can tell real data from silence
// padding.
type RangeResult struct {
	Values          []float64 // Frame-major, Lanes values per frame.
	Lanes           int
	FrameCount      int
	StepTicks       float64
	WindowStartTick float64
	WindowEndTick   float64
	TrackStartTick  float64
	TrackEndTick    float64
}

// SampleRange samples [startTick, endTick] (relative ticks) at the track's
// hop resolution, decimating to at most maxFrames output frames. Regions
// outside the analyzed range come back as silence. maxFrames <= 0 means
// full resolution.
func SampleRange(tr *Track, startTick, endTick float64, maxFrames int, opts SampleOptions) (RangeResult, bool) {
	if !usable(tr) {
		return RangeResult{}, false
	}
	if endTick < startTick {
		startTick, endTick = endTick, startTick
	}

	lanes := tr.Channels
	if opts.Channel.kind != channelAll {
		lanes = 1
	}

	total := int(math.Floor((endTick-startTick)/tr.HopTicks)) + 1
	if total < 1 {
		total = 1
	}
	stride := 1
	if maxFrames > 0 && total > maxFrames {
		stride = (total + maxFrames - 1) / maxFrames
		total = (total + stride - 1) / stride
	}
	step := tr.HopTicks * float64(stride)

	out := RangeResult{
		Values:          make([]float64, total*lanes),
		Lanes:           lanes,
		FrameCount:      total,
		StepTicks:       step,
		WindowStartTick: startTick,
		WindowEndTick:   endTick,
		TrackStartTick:  0,
		TrackEndTick:    float64(tr.FrameCount) * tr.HopTicks,
	}
	for i := 0; i < total; i++ {
		tick := startTick + float64(i)*step
		FrameInto(out.Values[i*lanes:(i+1)*lanes], tr, tick, opts)
	}
	return out, true
}
