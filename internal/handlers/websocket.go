package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mossy-p/webrtc-relay/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketOptions configures the signaling transport.
type WebSocketOptions struct {
	SendBuffer      int
	MaxMessageBytes int64
	CheckOrigin     func(r *http.Request) bool
}

// Client is a single websocket connection. It implements signaling.Peer:
// Send only queues, and a dedicated write pump owns all writes.
type Client struct {
	ID string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send queues data for the write pump without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return signaling.ErrPeerClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return signaling.ErrPeerBusy
	}
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once and from any goroutine.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// HandleSignaling upgrades the request and attaches the connection to the hub.
func HandleSignaling(hub *signaling.Hub, opts WebSocketOptions, log *slog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("ws.upgrade", "err", err, "remote_addr", c.Request.RemoteAddr)
			return
		}

		client := newClient(conn, opts.SendBuffer)
		client.ID = hub.Connect(client)

		log.Info("client.connected", "client_id", client.ID, "remote_addr", c.ClientIP())

		go client.writePump(log)
		go client.readPump(hub, opts.MaxMessageBytes, log)
	}
}

// readPump feeds inbound frames to the hub. It is the only reader of the
// connection and reports the disconnect when the connection ends.
func (c *Client) readPump(hub *signaling.Hub, maxMessageBytes int64, log *slog.Logger) {
	defer func() {
		hub.Disconnect(c.ID)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("ws.read", "client_id", c.ID, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		hub.HandleMessage(c.ID, message)
	}
}

// writePump is the only writer of data frames on the connection.
func (c *Client) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("ws.write", "client_id", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
