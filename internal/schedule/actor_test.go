// SPDX-License-Identifier: MIT
package schedule

import (
	"context"
	"testing"
	"time"

	"vizsync/internal/midi"
)

func recvReply(t *testing.T, a *Actor) Reply {
	t.Helper()
	select {
	case r := <-a.Replies():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return Reply{}
	}
}

func TestActorConfigThenTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewActor()
	go a.Run(ctx)

	cache := testCache("src", nil, beatNote(0, 1, 60), beatNote(4, 5, 61))
	a.Send(ConfigMsg{
		Tracks:       []Track{basicTrack("t1", "src")},
		Caches:       map[string]*midi.NoteCache{"src": cache},
		LookAheadSec: 0.5,
		BPM:          120,
	})

	// The config itself recompiles at playhead zero.
	r := recvReply(t, a)
	if r.Metrics.Count != len(r.Batch.Events) {
		t.Errorf("metrics count %d disagrees with batch length %d", r.Metrics.Count, len(r.Batch.Events))
	}
	if len(r.Batch.Events) != 2 {
		t.Fatalf("config reply has %d events, want 2", len(r.Batch.Events))
	}

	// Advancing to 1.9s shows only the second note's head.
	a.Send(TickMsg{NowSec: 1.9})
	r = recvReply(t, a)
	if len(r.Batch.Events) != 1 || r.Batch.Events[0].Kind != NoteOn {
		t.Fatalf("tick reply %+v, want the lone noteOn at 2.0s", r.Batch.Events)
	}
	if r.Batch.WindowStartSec != 1.9 {
		t.Errorf("window start %.3f, want 1.9", r.Batch.WindowStartSec)
	}
}

func TestActorDiffPatchesTracks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewActor()
	go a.Run(ctx)

	a.Send(ConfigMsg{
		Tracks:       []Track{basicTrack("t1", "src")},
		Caches:       map[string]*midi.NoteCache{"src": testCache("src", nil, beatNote(0, 1, 60))},
		LookAheadSec: 2.0,
		BPM:          120,
	})
	r := recvReply(t, a)
	if len(r.Batch.Events) != 2 {
		t.Fatalf("baseline has %d events, want 2", len(r.Batch.Events))
	}

	muted := basicTrack("t1", "src")
	muted.Mute = true
	a.Send(DiffMsg{Tracks: []Track{muted}})
	r = recvReply(t, a)
	if len(r.Batch.Events) != 0 {
		t.Fatalf("muting diff still produced %d events", len(r.Batch.Events))
	}

	// A diff naming an unknown track adds it.
	a.Send(DiffMsg{
		Tracks: []Track{basicTrack("t2", "other")},
		Caches: map[string]*midi.NoteCache{"other": testCache("other", nil, beatNote(1, 2, 64))},
	})
	r = recvReply(t, a)
	if len(r.Batch.Events) != 2 {
		t.Fatalf("after add diff got %d events, want 2 from the new track", len(r.Batch.Events))
	}
	for _, ev := range r.Batch.Events {
		if ev.TrackID != "t2" {
			t.Errorf("unexpected event from track %q", ev.TrackID)
		}
	}
}

func TestActorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewActor()

	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("actor did not exit after context cancel")
	}
}
