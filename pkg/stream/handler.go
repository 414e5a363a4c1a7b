package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/sensor"
)

// Handler upgrades requests to the live push channel.
type Handler struct {
	hub      *Hub
	fetcher  query.Fetcher
	upgrader websocket.Upgrader
	opts     Options
}

// NewHandler creates a websocket handler. Browser connections are accepted
// from the same host or from allowedOrigins.
func NewHandler(hub *Hub, fetcher query.Fetcher, allowedOrigins []string, opts Options) *Handler {
	if opts.Stats == nil {
		opts.Stats = hub.Stats()
	}
	return &Handler{
		hub:     hub,
		fetcher: fetcher,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return httpx.OriginAllowed(r, allowedOrigins)
			},
			ReadBufferSize:  config.WSReadBufferSize,
			WriteBufferSize: config.WSWriteBufferSize,
		},
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn)
	client.session = NewSession(h.fetcher, client, h.opts)

	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	go client.writePump()

	defer func() {
		client.session.Close()
		h.hub.Unregister(client)
	}()

	conn.SetReadLimit(config.WSMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))

		h.handleMessage(client.session, data)
	}
}

// handleMessage applies one client frame. Malformed frames and unknown
// events are ignored; the session keeps its current state.
func (h *Handler) handleMessage(session *Session, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Ignoring malformed frame from session %s: %v", session.ID, err)
		return
	}

	switch msg.Event {
	case EventSetTimeRange:
		var token string
		if err := json.Unmarshal(msg.Data, &token); err != nil {
			log.Printf("Ignoring setTimeRange from session %s: data must be a string", session.ID)
			return
		}
		window, err := sensor.ParseWindow(token)
		if err != nil {
			log.Printf("Ignoring setTimeRange from session %s: %v", session.ID, err)
			return
		}
		if err := session.SetWindow(window); err != nil {
			log.Printf("Failed to set window for session %s: %v", session.ID, err)
		}
	default:
		log.Printf("Ignoring unknown event %q from session %s", msg.Event, session.ID)
	}
}
