// Package progress broadcasts job progress events to websocket subscribers.
package progress

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is one progress update pushed to every subscriber as JSON.
type Event struct {
	Kind    string         `json:"kind"`              // event family: pull, datasets, cds, schedule
	Job     string         `json:"job,omitempty"`     // job within the family: stock, index, cds
	Message string         `json:"message,omitempty"` // stage or free text
	At      time.Time      `json:"at"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Event kinds.
const (
	KindPull     = "pull"
	KindDatasets = "datasets"
	KindCDS      = "cds"
	KindSchedule = "schedule"
)

// Hub maintains the subscriber set and fans events out to it. Run owns the
// client registry; everything else talks to it over channels.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	quit       chan struct{}
	done       chan struct{}
	logger     zerolog.Logger
	count      atomic.Int64
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. Call Run before publishing.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			// The stream is broadcast-only; any origin may subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run pumps registrations and events until Stop. Blocking; run it on its
// own goroutine.
func (h *Hub) Run() {
	defer close(h.done)
	clients := make(map[*client]struct{})

	for {
		select {
		case <-h.quit:
			for c := range clients {
				close(c.send)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.count.Store(int64(len(clients)))
			h.logger.Debug().Int("clients", len(clients)).Msg("progress subscriber connected")

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.count.Store(int64(len(clients)))
				h.logger.Debug().Int("clients", len(clients)).Msg("progress subscriber disconnected")
			}

		case e := <-h.broadcast:
			payload, err := json.Marshal(e)
			if err != nil {
				h.logger.Error().Err(err).Msg("failed to encode progress event")
				continue
			}
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					// Slow subscribers drop rather than stall the hub.
					delete(clients, c)
					close(c.send)
					h.count.Store(int64(len(clients)))
				}
			}
		}
	}
}

// Stop shuts the run loop down and closes every subscriber.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}

// Publish queues an event for broadcast. Events published while the queue
// is full or after Stop are dropped.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case <-h.quit:
	case h.broadcast <- e:
	default:
		h.logger.Warn().Str("kind", e.Kind).Msg("progress queue full, event dropped")
	}
}

// PullProgress implements the pull runner's notifier.
func (h *Hub) PullProgress(kind, stage string, records int) {
	h.Publish(Event{
		Kind:    KindPull,
		Job:     kind,
		Message: stage,
		Extra:   map[string]any{"records": records},
	})
}

// ClientCount reports the current subscriber count.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// ServeWS upgrades an HTTP request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- c:
	case <-h.quit:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
