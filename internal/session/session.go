// Package session owns the per-connection engine of the proxy: one Session
// per browser token, surviving browser disconnects so the MUD connection and
// scripted automation keep running.
package session

import (
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mudlink/mudlink/internal/ansi"
	"github.com/mudlink/mudlink/internal/discord"
	"github.com/mudlink/mudlink/internal/mip"
	"github.com/mudlink/mudlink/internal/script"
	"github.com/mudlink/mudlink/internal/telnet"
	"github.com/mudlink/mudlink/pkg/protocol"
)

const (
	// bufferCap bounds the outbound backlog kept while no browser is
	// attached; the head is dropped on overflow so the tail stays fresh.
	bufferCap = 150

	// packetPatch releases a partial line when the MUD pauses mid-packet.
	packetPatch = 500 * time.Millisecond

	// repeatCap bounds the #N command repeat form.
	repeatCap = 100
)

// BrowserConn is the attached browser write path. Send must not block the
// caller; the gateway client buffers writes on its own queue.
type BrowserConn interface {
	Send(protocol.Outbound)
	Close()
}

// Session is the stateful engine between one browser token and one MUD
// connection. All mutable fields are guarded by mu; the MUD read loop, the
// WebSocket dispatcher, tickers and the sweeper all serialize through it.
type Session struct {
	Token         string
	UserID        string
	CharacterID   string
	CharacterName string
	IsWizard      bool

	mu sync.Mutex

	ws  BrowserConn
	mud net.Conn
	// mudGen invalidates callbacks of a torn-down socket: the read loop and
	// packet-patch timer carry the generation they were started under.
	mudGen     int
	targetHost string
	targetPort int

	buffer             []protocol.Outbound
	bufferOverflow     bool
	disconnectedAt     time.Time
	explicitDisconnect bool

	asm        telnet.Assembler
	patchTimer *time.Timer
	carry      ansi.Carry
	mip        mip.Decoder
	engine     *script.Engine

	triggers []protocol.Trigger
	aliases  []protocol.Alias
	tickers  []protocol.Ticker

	tickerStop chan struct{}

	discordUser string
	prefs       map[string]protocol.ChannelPref

	webhooks *discord.Sender
	onRemove func(*Session)
	closed   bool
}

func newSession(token string, webhooks *discord.Sender, onRemove func(*Session)) *Session {
	return &Session{
		Token:    token,
		engine:   script.NewEngine(),
		webhooks: webhooks,
		onRemove: onRemove,
	}
}

// Send delivers a frame to the attached browser, or buffers it while none is
// attached. Newest-wins: on overflow the head is dropped and the overflow
// flag recorded.
func (s *Session) Send(out protocol.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(out)
}

func (s *Session) sendLocked(out protocol.Outbound) {
	if s.ws != nil {
		s.ws.Send(out)
		return
	}
	if len(s.buffer) >= bufferCap {
		s.buffer = s.buffer[1:]
		s.bufferOverflow = true
	}
	s.buffer = append(s.buffer, out)
}

// SetTriggers atomically replaces the trigger set.
func (s *Session) SetTriggers(triggers []protocol.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = triggers
	s.engine.ResetRules()
}

// SetAliases atomically replaces the alias set.
func (s *Session) SetAliases(aliases []protocol.Alias) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = aliases
}

// SetMIP enables or disables MIP decoding and records the session id.
func (s *Session) SetMIP(enabled bool, id string, debug bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mip.Configure(enabled, id, debug)
}

// SetDiscordPrefs replaces the per-channel notification routing. Webhook
// URLs on a non-Discord origin are dropped.
func (s *Session) SetDiscordPrefs(username string, prefs map[string]protocol.ChannelPref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discordUser = username
	clean := make(map[string]protocol.ChannelPref, len(prefs))
	for name, p := range prefs {
		if p.WebhookURL != "" && !discord.ValidURL(p.WebhookURL) {
			p.WebhookURL = ""
		}
		clean[name] = p
	}
	s.prefs = clean
}

// HandleCommand expands and dispatches an outgoing command from the browser.
// raw bypasses alias expansion entirely.
func (s *Session) HandleCommand(cmd string, raw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw {
		s.writeMUDLocked(cmd)
		return
	}
	for _, expanded := range script.ExpandAliases(cmd, s.aliases) {
		s.dispatchLocked(expanded)
	}
}

// TestLine feeds a line through the full inbound pipeline as if the MUD had
// sent it. Backs the client-side #showme command.
func (s *Session) TestLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processLineLocked(line, true)
}

var repeatRe = regexp.MustCompile(`^#(\d+)\s+(.+)$`)

// dispatchLocked routes one fully-expanded command: #N <cmd> repeats, other
// #-commands go back to the browser verbatim, the rest go to the MUD.
func (s *Session) dispatchLocked(cmd string) {
	if m := repeatRe.FindStringSubmatch(cmd); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > repeatCap {
			n = repeatCap
		}
		for i := 0; i < n; i++ {
			s.writeMUDLocked(m[2])
		}
		return
	}
	if strings.HasPrefix(cmd, "#") {
		s.sendLocked(protocol.Outbound{Type: protocol.TypeClientCommand, Command: cmd})
		return
	}
	s.writeMUDLocked(cmd)
}

func (s *Session) writeMUDLocked(cmd string) {
	if s.mud == nil {
		s.sendLocked(protocol.Outbound{Type: protocol.TypeSystem, Message: "Not connected to a MUD."})
		return
	}
	s.mud.Write([]byte(cmd + "\r\n"))
}

// processLineLocked runs one completed line through ANSI carry, the MIP
// decoder, and the trigger engine, emitting the resulting frames.
func (s *Session) processLineLocked(line string, test bool) {
	line = s.carry.Apply(line)

	res := s.mip.Decode(line)
	for _, ev := range res.Events {
		s.sendLocked(ev)
		// Per-channel routing: relay chat to the user's Discord webhook.
		if ev.Type == protocol.TypeMIPChat {
			if p, ok := s.prefs[ev.Channel]; ok && p.Discord && p.WebhookURL != "" {
				s.webhooks.SendAsync(p.WebhookURL, ev.Message, s.discordUser)
			}
		}
	}
	if res.Consumed && res.Residue == "" {
		return
	}
	line = res.Residue

	tr := s.engine.Apply(line, s.triggers)

	for _, id := range tr.Disabled {
		s.sendLocked(protocol.Outbound{
			Type:    protocol.TypeSystem,
			Message: "Trigger loop detected; trigger " + id + " has been disabled for this session.",
		})
		s.sendLocked(protocol.Outbound{Type: protocol.TypeDisableTrigger, TriggerID: id})
	}

	if !tr.Gag {
		s.sendLocked(protocol.Outbound{
			Type:      protocol.TypeMud,
			Line:      tr.Line,
			Highlight: tr.Highlighted,
			Sound:     tr.Sound,
			Test:      test,
		})
	}

	for _, cmd := range tr.Commands {
		for _, expanded := range script.ExpandAliases(cmd, s.aliases) {
			s.dispatchLocked(expanded)
		}
	}

	for _, d := range tr.Discord {
		s.webhooks.SendAsync(d.WebhookURL, s.substituteVarsLocked(d.Message), s.discordUser)
	}
	for _, c := range tr.Chatmon {
		s.sendLocked(protocol.Outbound{
			Type:    protocol.TypeTriggerChatmon,
			Message: s.substituteVarsLocked(c.Message),
			Channel: c.Channel,
		})
	}
}

var varRefRe = regexp.MustCompile(`\$([a-zA-Z_]\w*)`)

// substituteVarsLocked fills $name references from the session variable
// scope (MIP vitals plus derived guild variables). Unknown names pass
// through literally.
func (s *Session) substituteVarsLocked(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	stats := s.mip.Stats()
	scope := map[string]string{
		"hp":       strconv.Itoa(stats.HP.Current),
		"hpmax":    strconv.Itoa(stats.HP.Max),
		"sp":       strconv.Itoa(stats.SP.Current),
		"spmax":    strconv.Itoa(stats.SP.Max),
		"gp1":      strconv.Itoa(stats.GP1.Current),
		"gp2":      strconv.Itoa(stats.GP2.Current),
		"enemy":    stats.Enemy,
		"enemypct": stats.EnemyPct,
		"room":     stats.Room,
	}
	for k, v := range stats.Vars {
		scope[k] = v
	}
	return varRefRe.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := scope[m[1:]]; ok {
			return v
		}
		return m
	})
}
