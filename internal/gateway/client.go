package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mudlink/mudlink/internal/session"
	"github.com/mudlink/mudlink/pkg/protocol"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 120 * time.Second

	// sendQueue bounds the per-client outbound queue. Session code must never
	// block on a slow browser, so a full queue drops the frame.
	sendQueue = 256

	maxFrameSize = 64 * 1024
)

// tokenRe is the only accepted token shape: 64 lowercase hex characters, as
// minted by the site backend.
var tokenRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Client is one WebSocket connection. Until the auth frame arrives it has no
// session; afterwards every frame is dispatched against it.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	send chan protocol.Outbound

	mu      sync.Mutex
	session sessionRef
	closed  bool
}

// sessionRef is what the client needs from an attached session. Narrowed for
// tests.
type sessionRef interface {
	HandleCommand(cmd string, raw bool)
	SetTriggers(t []protocol.Trigger)
	SetAliases(a []protocol.Alias)
	SetTickers(t []protocol.Ticker)
	SetMIP(enabled bool, id string, debug bool)
	SetDiscordPrefs(username string, prefs map[string]protocol.ChannelPref)
	SetServer(host string, port int)
	Reconnect()
	TestLine(line string)
	Disconnect()
	DetachBrowser(conn session.BrowserConn)
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan protocol.Outbound, sendQueue),
	}
}

// Send queues a frame for the browser without blocking. Frames to a stalled
// connection are dropped; the MUD side must keep flowing regardless.
func (c *Client) Send(out protocol.Outbound) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- out:
	default:
		slog.Warn("client.send_dropped", "id", c.id, "frame", out.Type)
	}
}

// Close shuts the write pump and the underlying connection. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.send)
	c.conn.Close()
}

// Run drives the connection: a write pump goroutine plus the read loop on
// the caller. Returns when the connection dies.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readLoop(ctx)

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess != nil {
		sess.DetachBrowser(c)
	}
}

func (c *Client) writePump() {
	for out := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in protocol.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			slog.Warn("client.bad_frame", "id", c.id, "error", err)
			continue
		}

		if !c.handleFrame(ctx, in) {
			return
		}
	}
}

// handleFrame dispatches one inbound frame. Returns false when the
// connection must be dropped.
func (c *Client) handleFrame(ctx context.Context, in protocol.Inbound) bool {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	// The first frame on every connection must be a valid auth.
	if sess == nil {
		if in.Type != protocol.TypeAuth || !tokenRe.MatchString(in.Token) {
			c.Send(protocol.Outbound{Type: protocol.TypeError, Message: "authentication required"})
			slog.Warn("client.auth_rejected", "id", c.id, "frame", in.Type)
			return false
		}
		s := c.server.sessions.Auth(c, in)
		c.mu.Lock()
		c.session = s
		c.mu.Unlock()
		return true
	}

	switch in.Type {
	case protocol.TypeAuth:
		// Re-auth on a live connection is a protocol violation.
		c.Send(protocol.Outbound{Type: protocol.TypeError, Message: "already authenticated"})
	case protocol.TypeCommand:
		sess.HandleCommand(in.Command, in.Raw)
	case protocol.TypeSetTriggers:
		sess.SetTriggers(in.Triggers)
	case protocol.TypeSetAliases:
		sess.SetAliases(in.Aliases)
	case protocol.TypeSetTickers:
		sess.SetTickers(in.Tickers)
	case protocol.TypeSetMIP:
		sess.SetMIP(in.Enabled, in.MIPID, in.Debug)
	case protocol.TypeSetDiscordPrefs:
		sess.SetDiscordPrefs(in.Username, in.ChannelPrefs)
	case protocol.TypeSetServer:
		sess.SetServer(in.Host, in.Port)
	case protocol.TypeReconnect:
		sess.Reconnect()
	case protocol.TypeTestLine:
		sess.TestLine(in.Line)
	case protocol.TypeDisconnect:
		sess.Disconnect()
	case protocol.TypeKeepalive:
		c.Send(protocol.Outbound{Type: protocol.TypeKeepaliveAck})
	case protocol.TypeHealthCheck:
		c.Send(protocol.Outbound{Type: protocol.TypeHealthOK})
	default:
		slog.Warn("client.unknown_frame", "id", c.id, "frame", in.Type)
	}
	return true
}
