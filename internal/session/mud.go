package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/mudlink/mudlink/pkg/protocol"
)

const dialTimeout = 10 * time.Second

// SetServer validates the target against the whitelist and starts an
// asynchronous connect. Any existing MUD socket is torn down first.
func (s *Session) SetServer(host string, port int) {
	if !Allowed(host, port) {
		s.Send(systemMsg(fmt.Sprintf("Server %s:%d is not on the whitelist.", host, port)))
		slog.Warn("mud.whitelist_rejected", "token", short(s.Token), "host", host, "port", port)
		return
	}

	s.mu.Lock()
	s.targetHost = host
	s.targetPort = port
	s.teardownMUDLocked()
	gen := s.mudGen
	s.mu.Unlock()

	go s.connect(host, port, gen)
}

// Reconnect tears the current socket fully down, then dials the stored
// target again.
func (s *Session) Reconnect() {
	s.mu.Lock()
	host, port := s.targetHost, s.targetPort
	s.mu.Unlock()
	if host == "" {
		s.Send(systemMsg("No server to reconnect to; use set_server first."))
		return
	}
	s.SetServer(host, port)
}

func (s *Session) connect(host string, port int, gen int) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), dialTimeout)
	if err != nil {
		s.Send(systemMsg("Could not connect to " + host + ": " + err.Error()))
		slog.Warn("mud.connect_failed", "token", short(s.Token), "host", host, "error", err)
		return
	}

	s.mu.Lock()
	if s.closed || gen != s.mudGen {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.mud = conn
	s.sendLocked(systemMsg(fmt.Sprintf("Connected to %s:%d.", host, port)))
	s.mu.Unlock()

	slog.Info("mud.connected", "token", short(s.Token), "host", host, "port", port)
	go s.readLoop(conn, gen)
}

// readLoop feeds raw MUD bytes into the line pipeline until the socket
// closes or errors.
func (s *Session) readLoop(conn net.Conn, gen int) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.handleMUDData(buf[:n], gen)
		}
		if err != nil {
			s.handleMUDClosed(gen, err)
			return
		}
	}
}

func (s *Session) handleMUDData(data []byte, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.mudGen {
		return
	}

	// Fresh data always cancels an armed packet-patch timer; failing to do
	// this duplicates partial lines.
	if s.patchTimer != nil {
		s.patchTimer.Stop()
		s.patchTimer = nil
	}

	lines, _ := s.asm.Feed(data)
	for _, line := range lines {
		s.processLineLocked(line, false)
	}

	if s.asm.Pending() {
		s.patchTimer = time.AfterFunc(packetPatch, func() { s.patchFire(gen) })
	}
}

// patchFire releases the buffered partial line when no more data arrived
// within the packet-patch interval.
func (s *Session) patchFire(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.mudGen {
		return
	}
	s.patchTimer = nil
	if line, ok := s.asm.FlushPartial(); ok {
		s.processLineLocked(line, false)
	}
}

func (s *Session) handleMUDClosed(gen int, err error) {
	s.mu.Lock()
	if s.closed || gen != s.mudGen {
		s.mu.Unlock()
		return
	}
	s.teardownMUDLocked()
	explicit := s.explicitDisconnect
	if err != nil && !errors.Is(err, io.EOF) {
		s.sendLocked(protocol.Outbound{Type: protocol.TypeError, Message: "MUD connection error: " + err.Error()})
	} else {
		s.sendLocked(systemMsg("MUD connection closed (idle timeout or linkdead)."))
	}
	s.mu.Unlock()

	slog.Info("mud.closed", "token", short(s.Token), "error", err)
	if explicit {
		s.remove()
	}
}

// teardownMUDLocked destroys the socket and every piece of state tied to it:
// listeners (via the generation bump), the partial line buffer, the packet
// patch timer, the MIP id and the ANSI carry.
func (s *Session) teardownMUDLocked() {
	s.mudGen++
	if s.mud != nil {
		s.mud.Close()
		s.mud = nil
	}
	if s.patchTimer != nil {
		s.patchTimer.Stop()
		s.patchTimer = nil
	}
	s.asm.Reset()
	s.carry.Reset()
	s.mip.ResetID()
}

// MudConnected reports whether the upstream socket is alive.
func (s *Session) MudConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mud != nil
}

// SetExplicitDisconnect marks a user-initiated close; the session is deleted
// on the next close event instead of surviving for a reconnect.
func (s *Session) SetExplicitDisconnect() {
	s.mu.Lock()
	s.explicitDisconnect = true
	s.mu.Unlock()
}

// Disconnect is the user asking to leave the MUD. The socket comes down and
// the session is deleted; nothing of value survives an explicit disconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.explicitDisconnect = true
	had := s.mud != nil
	s.teardownMUDLocked()
	if had {
		s.sendLocked(systemMsg("Disconnected."))
	}
	s.mu.Unlock()

	slog.Info("mud.disconnect", "token", short(s.Token))
	s.remove()
}

// DetachBrowser records that the browser went away. An explicit disconnect
// deletes the session; otherwise it stays alive for the idle-timeout window.
func (s *Session) DetachBrowser(conn BrowserConn) {
	s.mu.Lock()
	if s.ws != conn {
		// A takeover already replaced this browser; nothing to do.
		s.mu.Unlock()
		return
	}
	s.ws = nil
	s.disconnectedAt = time.Now()
	explicit := s.explicitDisconnect
	s.mu.Unlock()

	slog.Info("session.browser_detached", "token", short(s.Token), "explicit", explicit)
	if explicit {
		s.remove()
	}
}

// Close cancels all timers and tickers, closes both ends, and marks the
// session dead. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTickersLocked()
	s.teardownMUDLocked()
	ws := s.ws
	s.ws = nil
	s.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

func (s *Session) remove() {
	if s.onRemove != nil {
		s.onRemove(s)
	}
}

func systemMsg(msg string) protocol.Outbound {
	return protocol.Outbound{Type: protocol.TypeSystem, Message: msg}
}

// short truncates a token for logging; full tokens never hit the logs.
func short(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
