// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"vizsync/internal/log"
	"vizsync/internal/playback"
	"vizsync/internal/schedule"
	"vizsync/internal/store"
	"vizsync/internal/tempo"
	"vizsync/internal/timing"
)

// Inbound message types. CONFIG/DIFF/TICK drive the per-connection
// schedule actor; PLAY/PAUSE/SEEK drive the shared transport coordinator.
const (
	MsgConfig = "CONFIG"
	MsgDiff   = "DIFF"
	MsgTick   = "TICK"
	MsgPlay   = "PLAY"
	MsgPause  = "PAUSE"
	MsgSeek   = "SEEK"
)

// Outbound message type.
const MsgScheduleBatch = "SCHEDULE_BATCH"

// clientMessage is the wire form of everything a client can send. Fields
// are populated per Type; unknown types are logged and dropped.
type clientMessage struct {
	Type         string           `json:"type"`
	Tracks       []schedule.Track `json:"tracks,omitempty"`
	TempoMap     []tempo.MapEntry `json:"tempoMap,omitempty"`
	BPM          float64          `json:"bpm,omitempty"`
	BeatsPerBar  int              `json:"beatsPerBar,omitempty"`
	LookAheadSec float64          `json:"lookAheadSec,omitempty"`
	NowSec       float64          `json:"nowSec"`
	Tick         float64          `json:"tick,omitempty"` // PLAY start / SEEK target
}

// batchMessage is the reply pushed after every recompile.
type batchMessage struct {
	Type    string           `json:"type"`
	Batch   schedule.Batch   `json:"batch"`
	Metrics schedule.Metrics `json:"metrics"`
}

// client pairs a connection with its actor's cancel func and a write lock.
// Gorilla connections allow one concurrent writer; both the per-client
// reply loop and the broadcast fan-out must take the lock.
type client struct {
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

// ScheduleServer serves the scheduling protocol over WebSocket. Each
// connection gets its own actor so clients with different lookaheads or
// playheads never interfere; MIDI note caches come from the shared store.
type ScheduleServer struct {
	addr      string
	st        *store.Store
	tm        *timing.Manager
	coord     *playback.Coordinator
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]*client
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
}

// NewScheduleServer builds the server and starts listening on addr. coord
// may be nil, disabling the transport-control messages.
func NewScheduleServer(addr string, st *store.Store, tm *timing.Manager, coord *playback.Coordinator) *ScheduleServer {
	s := &ScheduleServer{
		addr:  addr,
		st:    st,
		tm:    tm,
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // editor runs on a different origin during development
			},
		},
		clients:   make(map[*websocket.Conn]*client),
		broadcast: make(chan any, 256),
	}
	s.start()
	return s
}

func (s *ScheduleServer) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		log.Infof("schedule server: listening on %s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("schedule server: %v", err)
		}
	}()

	go s.handleBroadcasts()
}

func (s *ScheduleServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("schedule server: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := &client{cancel: cancel}
	s.clientsMu.Lock()
	s.clients[conn] = cl
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Infof("schedule server: client connected, total %d", total)

	actor := schedule.NewActor()
	go actor.Run(ctx)
	go s.writeLoop(ctx, conn, cl, actor)
	go s.readLoop(ctx, conn, actor)
}

func (s *ScheduleServer) readLoop(ctx context.Context, conn *websocket.Conn, actor *schedule.Actor) {
	defer s.dropClient(conn)
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Debugf("schedule server: read: %v", err)
			}
			return
		}
		switch msg.Type {
		case MsgConfig:
			tracks := msg.Tracks
			if tracks == nil {
				tracks = s.st.CompileTracks(s.tm)
			}
			tempoMap := msg.TempoMap
			if tempoMap == nil {
				tempoMap = s.tm.TempoMap()
			}
			bpm := msg.BPM
			if bpm <= 0 {
				bpm = s.tm.BPM()
			}
			actor.Send(schedule.ConfigMsg{
				Tracks:       tracks,
				Caches:       s.st.MIDICaches(),
				LookAheadSec: msg.LookAheadSec,
				TempoMap:     tempoMap,
				BPM:          bpm,
				BeatsPerBar:  msg.BeatsPerBar,
			})
		case MsgDiff:
			actor.Send(schedule.DiffMsg{
				Tracks: msg.Tracks,
				Caches: s.st.MIDICaches(),
			})
		case MsgTick:
			actor.Send(schedule.TickMsg{NowSec: msg.NowSec})
		case MsgPlay:
			if s.coord != nil {
				s.coord.Play(msg.Tick)
			}
		case MsgPause:
			if s.coord != nil {
				s.coord.Pause()
			}
		case MsgSeek:
			if s.coord != nil {
				s.coord.Seek(msg.Tick)
			}
		default:
			log.Warnf("schedule server: unknown message type %q", msg.Type)
		}
	}
}

func (s *ScheduleServer) writeLoop(ctx context.Context, conn *websocket.Conn, cl *client, actor *schedule.Actor) {
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-actor.Replies():
			out := batchMessage{
				Type:    MsgScheduleBatch,
				Batch:   reply.Batch,
				Metrics: reply.Metrics,
			}
			cl.writeMu.Lock()
			err := conn.WriteJSON(out)
			cl.writeMu.Unlock()
			if err != nil {
				log.Debugf("schedule server: write: %v", err)
				s.dropClient(conn)
				return
			}
		}
	}
}

func (s *ScheduleServer) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	cl, ok := s.clients[conn]
	if ok {
		delete(s.clients, conn)
	}
	total := len(s.clients)
	s.clientsMu.Unlock()
	if !ok {
		return
	}
	cl.cancel()
	conn.Close()
	log.Infof("schedule server: client disconnected, total %d", total)
}

func (s *ScheduleServer) handleBroadcasts() {
	for data := range s.broadcast {
		s.clientsMu.Lock()
		for conn, cl := range s.clients {
			cl.writeMu.Lock()
			err := conn.WriteJSON(data)
			cl.writeMu.Unlock()
			if err != nil {
				log.Debugf("schedule server: broadcast write: %v", err)
			}
		}
		s.clientsMu.Unlock()
	}
}

// Send queues a payload for broadcast to every connected client. When the
// queue is full the payload is dropped; transport state is advisory.
func (s *ScheduleServer) Send(data any) error {
	select {
	case s.broadcast <- data:
	default:
	}
	return nil
}

// Close disconnects every client and stops the HTTP server.
func (s *ScheduleServer) Close() error {
	s.clientsMu.Lock()
	for conn, cl := range s.clients {
		cl.cancel()
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]*client)
	s.clientsMu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

var _ Transport = (*ScheduleServer)(nil)
