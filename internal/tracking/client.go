package tracking

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB
)

// subscribePrefix is the observer text command that narrows the event stream
// to a single driver.
const subscribePrefix = "subscribe:"

// ErrSendBufferFull means the client could not keep up with the event stream.
var ErrSendBufferFull = errors.New("client send buffer full")

// Client is one websocket connection on the hub, either a driver publishing
// positions (driverID set) or an observer consuming them.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	driverID     string
	filterDriver string
	closeOnce    sync.Once
}

// NewDriverClient wraps a driver connection.
func NewDriverClient(hub *Hub, conn *websocket.Conn, driverID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, hub.sendBuffer),
		driverID: driverID,
	}
}

// NewObserverClient wraps a monitoring connection. filterDriver only scopes
// the initial snapshot; the broadcast stream always carries every driver.
func NewObserverClient(hub *Hub, conn *websocket.Conn, filterDriver string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, hub.sendBuffer),
		filterDriver: filterDriver,
	}
}

// Close tears the connection down. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// SendEvent queues an event without blocking. A full buffer reports
// ErrSendBufferFull so the hub can drop the laggard.
func (c *Client) SendEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.sendBytes(payload)
}

func (c *Client) sendBytes(payload []byte) (err error) {
	defer func() {
		// Send on a closed channel means the client was already torn down.
		if recover() != nil {
			err = websocket.ErrCloseSent
		}
	}()
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// ReadPump pumps inbound messages until the connection drops. Drivers publish
// location updates; observers may issue subscribe commands.
func (c *Client) ReadPump() {
	defer func() {
		if c.driverID != "" {
			c.hub.UnregisterDriver(c.driverID, c)
		} else {
			c.hub.UnregisterObserver(c)
		}
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read failed",
					zap.String("driver_id", c.driverID),
					zap.Error(err),
				)
			}
			return
		}

		if c.driverID != "" {
			c.handleDriverMessage(raw)
		} else {
			c.handleObserverMessage(raw)
		}
	}
}

func (c *Client) handleDriverMessage(raw []byte) {
	if _, err := c.hub.IngestMessage(c.driverID, raw); err != nil {
		payload, _ := json.Marshal(map[string]string{
			"type":    "error",
			"message": err.Error(),
		})
		_ = c.sendBytes(payload)
	}
}

// handleObserverMessage processes a subscribe hint. The hint is acknowledged
// and answered with the driver's last known position; it does not narrow the
// broadcast stream.
func (c *Client) handleObserverMessage(raw []byte) {
	text := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(text, subscribePrefix) {
		return
	}
	driverID := strings.TrimSpace(strings.TrimPrefix(text, subscribePrefix))

	payload, _ := json.Marshal(map[string]string{
		"type":      "subscribed",
		"driver_id": driverID,
	})
	_ = c.sendBytes(payload)

	if record, ok := c.hub.LastKnown(driverID); ok {
		if b, err := json.Marshal(record); err == nil {
			_ = c.sendBytes(b)
		}
	}
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
