// SPDX-License-Identifier: MIT
package schedule

import (
	"context"

	"vizsync/internal/log"
	"vizsync/internal/midi"
	"vizsync/internal/tempo"
)

// Reply carries one compiled batch back to the actor's client.
type Reply struct {
	Batch   Batch
	Metrics Metrics
}

// ConfigMsg replaces the actor's full compile configuration.
type ConfigMsg struct {
	Tracks       []Track
	Caches       map[string]*midi.NoteCache
	LookAheadSec float64
	TempoMap     []tempo.MapEntry
	BPM          float64
	BeatsPerBar  int
}

// DiffMsg patches individual tracks by ID. Tracks not yet known to the
// actor are added; caches merge key-wise.
type DiffMsg struct {
	Tracks []Track
	Caches map[string]*midi.NoteCache
}

// TickMsg advances the playhead and requests a fresh window.
type TickMsg struct {
	NowSec float64
}

// Actor serializes compile state behind a message inbox. One goroutine owns
// the state; clients talk to it only through Send and the reply channel, so
// no locking is needed anywhere in the compile path.
type Actor struct {
	inbox   chan any
	replies chan Reply
	state   Params
}

// NewActor returns an actor ready to Run. The reply channel is buffered so
// a slow reader cannot wedge the compile loop for a full buffer's worth.
func NewActor() *Actor {
	return &Actor{
		inbox:   make(chan any, 16),
		replies: make(chan Reply, 16),
	}
}

// Send queues a message for the actor. Accepts ConfigMsg, DiffMsg and
// TickMsg; anything else is dropped by the loop.
func (a *Actor) Send(msg any) {
	a.inbox <- msg
}

// Replies exposes the outbound batch stream.
func (a *Actor) Replies() <-chan Reply { return a.replies }

// Run processes the inbox until ctx is done. Every state-changing message
// triggers a recompile at the last known playhead so clients always hold a
// batch consistent with the latest configuration.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			switch m := msg.(type) {
			case ConfigMsg:
				a.state.Tracks = m.Tracks
				a.state.Caches = m.Caches
				a.state.LookAheadSec = m.LookAheadSec
				a.state.TempoMap = m.TempoMap
				a.state.BPM = m.BPM
				a.state.BeatsPerBar = m.BeatsPerBar
			case DiffMsg:
				a.applyDiff(m)
			case TickMsg:
				a.state.NowSec = m.NowSec
			default:
				log.Warnf("schedule: dropping unknown message %T", msg)
				continue
			}
			batch, metrics := CompileWindowTimed(a.state)
			select {
			case a.replies <- Reply{Batch: batch, Metrics: metrics}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *Actor) applyDiff(m DiffMsg) {
	for _, tr := range m.Tracks {
		replaced := false
		for i := range a.state.Tracks {
			if a.state.Tracks[i].ID == tr.ID {
				a.state.Tracks[i] = tr
				replaced = true
				break
			}
		}
		if !replaced {
			a.state.Tracks = append(a.state.Tracks, tr)
		}
	}
	if len(m.Caches) > 0 {
		if a.state.Caches == nil {
			a.state.Caches = make(map[string]*midi.NoteCache, len(m.Caches))
		}
		for id, c := range m.Caches {
			a.state.Caches[id] = c
		}
	}
}
