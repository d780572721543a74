// SPDX-License-Identifier: MIT
/*
Package playback coordinates the transport: play, pause and seek over a
tick-domain playhead. Two drive modes exist. With a Clock attached the
playhead derives from the clock's monotonic seconds; without one, callers
feed wall-clock frames through UpdateFrame and the coordinator integrates
elapsed time itself.
*/
package playback

import (
	"sync"

	"vizsync/internal/log"
	"vizsync/internal/timing"
)

// Clock is a monotonic seconds source, typically backed by the audio
// output stream so visuals lock to what is actually audible.
type Clock interface {
	NowSec() float64
}

// State is a snapshot of the transport.
type State struct {
	Playing bool
	Tick    float64
	Seconds float64
}

// Coordinator is safe for concurrent use. All playhead math runs through
// the timing manager so tempo edits take effect on the next update.
type Coordinator struct {
	mu      sync.Mutex
	tm      *timing.Manager
	clock   Clock
	playing bool
	tick    float64

	// clock mode: seconds on the clock at the moment of the last Play/Seek,
	// paired with the tick the playhead held then.
	clockBaseSec  float64
	clockBaseTick float64

	// manual mode: wall time of the last UpdateFrame.
	lastFrameMs float64
	haveFrame   bool

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewCoordinator builds a transport over the given timing manager. clock
// may be nil, selecting manual frame-driven mode.
func NewCoordinator(tm *timing.Manager, clock Clock) *Coordinator {
	return &Coordinator{
		tm:    tm,
		clock: clock,
		subs:  make(map[int]func(State)),
	}
}

// Subscribe registers a listener invoked with a state snapshot after every
// transport change. The unsubscribe func is idempotent.
func (c *Coordinator) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Coordinator) publish(st State) {
	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Play starts playback from startTick.
func (c *Coordinator) Play(startTick float64) {
	c.mu.Lock()
	c.tick = startTick
	c.playing = true
	if c.clock != nil {
		c.clockBaseSec = c.clock.NowSec()
		c.clockBaseTick = startTick
	}
	c.haveFrame = false
	st := c.stateLocked()
	c.mu.Unlock()
	log.Debugf("playback: play from tick %.1f", startTick)
	c.publish(st)
}

// Pause freezes the playhead where it is.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	if c.playing && c.clock != nil {
		c.tick = c.clockTickLocked()
	}
	c.playing = false
	c.haveFrame = false
	st := c.stateLocked()
	c.mu.Unlock()
	c.publish(st)
}

// Seek moves the playhead. Works while playing or paused; a paused seek
// stays put until the next Play or UpdateFrame.
func (c *Coordinator) Seek(tick float64) {
	c.mu.Lock()
	c.tick = tick
	if c.playing && c.clock != nil {
		c.clockBaseSec = c.clock.NowSec()
		c.clockBaseTick = tick
	}
	c.haveFrame = false
	st := c.stateLocked()
	c.mu.Unlock()
	c.publish(st)
}

// UpdateFrame is the per-frame entry. It advances the playhead given the
// caller's wall clock in milliseconds and returns the tick along with
// whether it moved this frame. While paused it leaves the playhead alone;
// the first frame after Play only establishes the baseline. Subscribers
// fire only on frames where the tick actually changed.
func (c *Coordinator) UpdateFrame(nowMs float64) (float64, bool) {
	c.mu.Lock()
	if !c.playing {
		tick := c.tick
		c.mu.Unlock()
		return tick, false
	}
	prev := c.tick
	if c.clock != nil {
		c.tick = c.clockTickLocked()
	} else {
		if !c.haveFrame {
			c.lastFrameMs = nowMs
			c.haveFrame = true
			tick := c.tick
			c.mu.Unlock()
			return tick, false
		}
		elapsedSec := (nowMs - c.lastFrameMs) / 1000.0
		c.lastFrameMs = nowMs
		if elapsedSec > 0 {
			sec := c.tm.TicksToSeconds(c.tick) + elapsedSec
			c.tick = c.tm.SecondsToTicks(sec)
		}
	}
	tick := c.tick
	changed := tick != prev
	var st State
	if changed {
		st = c.stateLocked()
	}
	c.mu.Unlock()
	if changed {
		c.publish(st)
	}
	return tick, changed
}

// State snapshots the transport, reading the clock when one drives it.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing && c.clock != nil {
		c.tick = c.clockTickLocked()
	}
	return c.stateLocked()
}

func (c *Coordinator) clockTickLocked() float64 {
	elapsed := c.clock.NowSec() - c.clockBaseSec
	baseSec := c.tm.TicksToSeconds(c.clockBaseTick)
	return c.tm.SecondsToTicks(baseSec + elapsed)
}

func (c *Coordinator) stateLocked() State {
	return State{
		Playing: c.playing,
		Tick:    c.tick,
		Seconds: c.tm.TicksToSeconds(c.tick),
	}
}
