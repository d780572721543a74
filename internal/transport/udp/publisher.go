// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "vizsync/internal/log"
	"vizsync/internal/playback"
)

// PositionPublisher periodically samples the transport and broadcasts the
// playhead over UDP so external visualizers can follow along without a
// WebSocket session. Runs in its own goroutine between Start and Stop.
type PositionPublisher struct {
	sender   *Sender
	coord    *playback.Coordinator
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // guards ticker/doneChan across Start/Stop

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // reused across sends
}

// NewPositionPublisher wires the publisher. An interval <= 0 defaults to
// 16ms, roughly one packet per display frame.
func NewPositionPublisher(interval time.Duration, sender *Sender, coord *playback.Coordinator) (*PositionPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("position publisher: sender cannot be nil")
	}
	if coord == nil {
		return nil, fmt.Errorf("position publisher: coordinator cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("position publisher: invalid interval, defaulting to %s", interval)
	}
	return &PositionPublisher{
		sender:       sender,
		coord:        coord,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while already
// running is a no-op.
func (p *PositionPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("position publisher: already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("position publisher: started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.sendPosition()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. Safe to call more
// than once, and before Start.
func (p *PositionPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("position publisher: stopped")
	return nil
}

/*
Position packet layout (BigEndian):

|<-- 4 Bytes -->|<---- 8 Bytes ---->|<-- 8 Bytes -->|<-- 8 Bytes -->|<- 1 ->|
+---------------+-------------------+---------------+---------------+-------+
|   Sequence    |     Timestamp     |   Playhead    |   Playhead    | Play  |
|   (uint32)    |  (int64, ns since |    (float64   |   (float64    | flag  |
|               |       epoch)      |     ticks)    |    seconds)   |(uint8)|
+---------------+-------------------+---------------+---------------+-------+
*/

func (p *PositionPublisher) sendPosition() {
	st := p.coord.State()

	p.sequenceNum++
	playing := uint8(0)
	if st.Playing {
		playing = 1
	}

	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, time.Now().UnixNano())
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, st.Tick)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, st.Seconds)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, playing)
	}
	if err != nil {
		applog.Errorf("position publisher: pack failed: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("position publisher: sent packet %d (tick %.1f)", p.sequenceNum, st.Tick)
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *PositionPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*PositionPublisher)(nil)
