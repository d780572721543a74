// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"vizsync/cmd"
	"vizsync/internal/analysis"
	"vizsync/internal/audio"
	"vizsync/internal/config"
	"vizsync/internal/feature"
	applog "vizsync/internal/log"
	"vizsync/internal/midi"
	"vizsync/internal/playback"
	"vizsync/internal/schedule"
	"vizsync/internal/store"
	"vizsync/internal/timing"
	"vizsync/internal/transport"
	"vizsync/internal/transport/udp"
	"vizsync/pkg/build"
)

// frameInterval paces the serve frame loop, roughly 60 Hz.
const frameInterval = 16 * time.Millisecond

// main runs in three phases:
//
// 1. Startup (cold): build info, CLI parsing, config loading, log level.
// 2. Command dispatch: one-off commands (list, analyze, compile) run and
//    exit; serve wires the full engine and blocks.
// 3. Shutdown (cold): the signal handler tears the engine down in reverse
//    construction order.
func main() {
	build.Initialize()

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if opts.Command == "" {
		return // cobra handled it (help, version)
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if opts.Verbose || cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	switch opts.Command {
	case "list":
		if err := runList(); err != nil {
			applog.Fatalf("%v", err)
		}
	case "analyze":
		if err := runAnalyze(cfg, opts); err != nil {
			applog.Fatalf("%v", err)
		}
	case "compile":
		if err := runCompile(opts); err != nil {
			applog.Fatalf("%v", err)
		}
	case "serve":
		if err := runServe(cfg); err != nil {
			applog.Fatalf("%v", err)
		}
	}
}

func runList() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices()
}

// runAnalyze decodes a WAV file, runs the full calculator set through the
// analysis scheduler and prints the resulting track shapes.
func runAnalyze(cfg *config.Config, opts *cmd.Options) error {
	src, err := audio.LoadWAV(opts.SourceID, opts.WAVPath)
	if err != nil {
		return err
	}

	reg := analysis.NewDefaultRegistry()
	sched := analysis.NewScheduler()
	job := sched.Schedule(context.Background(), func(ctx context.Context) (*feature.Cache, error) {
		return analysis.Analyze(ctx, reg, analysis.Request{
			SourceID:   src.ID,
			Samples:    src.Samples,
			SampleRate: src.SampleRate,
			Profile: feature.Profile{
				ID:         cfg.Analysis.ProfileID,
				WindowSize: cfg.Analysis.WindowSize,
				HopSize:    cfg.Analysis.HopSize,
			},
			BPM:           cfg.Timing.BPM,
			CalculatorIDs: cfg.Analysis.Features,
		})
	})

	result, err := job.Wait(context.Background())
	if err != nil {
		return err
	}

	st := store.New()
	merged := st.ApplyAnalysis(src.ID, result)

	fmt.Printf("source %s: %d frames, hop %.4fs\n", src.ID, merged.FrameCount, merged.HopSeconds)
	keys := make([]string, 0, len(merged.Tracks))
	for k := range merged.Tracks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tr := merged.Tracks[k]
		fmt.Printf("  %-24s %6d frames x %d ch (%s, calculator %s v%d)\n",
			tr.Key, tr.FrameCount, tr.Channels, tr.Format, tr.CalculatorID, tr.Version)
	}
	return nil
}

// runCompile parses a MIDI file and prints one compiled window as JSON.
func runCompile(opts *cmd.Options) error {
	cache, err := midi.LoadFile(opts.MIDIPath)
	if err != nil {
		return err
	}

	batch, metrics := schedule.CompileWindowTimed(schedule.Params{
		Tracks: []schedule.Track{{
			ID:           cache.SourceID,
			Enabled:      true,
			Gain:         1.0,
			MIDISourceID: cache.SourceID,
		}},
		Caches:       map[string]*midi.NoteCache{cache.SourceID: cache},
		NowSec:       opts.NowSec,
		LookAheadSec: opts.LookAheadSec,
		BPM:          opts.BPM,
	})
	applog.Infof("compiled %d events in %.3fms", metrics.Count, metrics.CompileMs)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(batch)
}

// runServe wires the full engine: timing, store, playback, the WebSocket
// schedule service and the optional UDP position broadcast.
func runServe(cfg *config.Config) error {
	tm := timing.NewManager()
	tm.SetBPM(cfg.Timing.BPM)

	st := store.New()

	var clock playback.Clock
	if cfg.Audio.ClockEnabled {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()

		sc, err := audio.NewStreamClock(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
		if err != nil {
			return err
		}
		if err := sc.Start(); err != nil {
			sc.Close()
			return err
		}
		defer sc.Close()
		clock = sc
	}

	coord := playback.NewCoordinator(tm, clock)

	server := transport.NewScheduleServer(cfg.Server.Addr, st, tm, coord)
	defer server.Close()

	sinks := []transport.Transport{server}
	if cfg.Debug {
		sinks = append(sinks, transport.NewLoggingTransport())
	}

	// Push transport state to every sink as it changes.
	unsub := coord.Subscribe(func(state playback.State) {
		for _, sink := range sinks {
			sink.Send(map[string]any{
				"type":    "TRANSPORT",
				"playing": state.Playing,
				"tick":    state.Tick,
				"seconds": state.Seconds,
			})
		}
	})
	defer unsub()

	if cfg.Position.UDPEnabled {
		sender, err := udp.NewSender(cfg.Position.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()

		pub, err := udp.NewPositionPublisher(cfg.Position.UDPSendInterval, sender, coord)
		if err != nil {
			return err
		}
		pub.Start()
		defer pub.Stop()
	}

	// Frame loop: drives the coordinator at render rate so the playhead
	// advances (and subscribers fire) while the transport is playing.
	frameQuit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-frameQuit:
				return
			case now := <-ticker.C:
				coord.UpdateFrame(float64(now.UnixNano()) / 1e6)
			}
		}
	}()
	defer close(frameQuit)

	applog.Infof("%s %s listening on %s",
		build.GetBuildFlags().Name, build.GetBuildFlags().Version, cfg.Server.Addr)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	applog.Info("shutting down")
	return nil
}
