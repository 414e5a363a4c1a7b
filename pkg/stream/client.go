package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nicktill/thermonest/pkg/config"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var errClientClosed = errors.New("client closed")

// Client is one websocket connection. All writes go through a single
// writer goroutine fed by a bounded queue.
type Client struct {
	conn    *websocket.Conn
	session *Session

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, config.WSSendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues one event. When the queue is full the event is dropped so a
// slow reader cannot stall its session's timer.
func (c *Client) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	frame, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		log.Printf("Send queue full, dropping %s event", event)
		return nil
	}
}

// writePump owns all writes to the connection, including pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("WebSocket write error: %v", err)
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
