package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/pkg/signal"
)

const sendBufferSize = 64

// wsClient wraps one gorilla connection behind the signal.Member contract.
// gorilla allows a single concurrent writer, so all outbound envelopes are
// funneled through a buffered channel drained by one write pump goroutine.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger zerolog.Logger

	closeOnce sync.Once
}

func newWSClient(id string, conn *websocket.Conn, logger zerolog.Logger) *wsClient {
	c := &wsClient{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "wsClient").Str("conn", id).Logger(),
	}
	go c.writePump()
	return c
}

func (c *wsClient) ID() string { return c.id }

// Deliver queues one envelope for the write pump. A client that cannot keep
// up loses messages rather than stalling fabric delivery; that matches the
// best-effort forwarding policy.
func (c *wsClient) Deliver(envelope *signal.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	select {
	case <-c.done:
		return fmt.Errorf("connection %s is closed", c.id)
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("Write failed, closing connection")
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Error closing websocket")
		}
	})
}
