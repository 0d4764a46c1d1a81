package session

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mudlink/mudlink/internal/discord"
	"github.com/mudlink/mudlink/pkg/protocol"
)

// fakeWS collects outbound frames in place of a real browser connection.
type fakeWS struct {
	mu     sync.Mutex
	frames []protocol.Outbound
	closed bool
}

func (f *fakeWS) Send(out protocol.Outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, out)
}

func (f *fakeWS) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeWS) all() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Outbound(nil), f.frames...)
}

func (f *fakeWS) ofType(typ string) []protocol.Outbound {
	var out []protocol.Outbound
	for _, fr := range f.all() {
		if fr.Type == typ {
			out = append(out, fr)
		}
	}
	return out
}

// fakeMUD is a net.Conn that records writes.
type fakeMUD struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeMUD) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeMUD) Read(p []byte) (int, error)         { select {} }
func (f *fakeMUD) Close() error                       { return nil }
func (f *fakeMUD) LocalAddr() net.Addr                { return nil }
func (f *fakeMUD) RemoteAddr() net.Addr               { return nil }
func (f *fakeMUD) SetDeadline(t time.Time) error      { return nil }
func (f *fakeMUD) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeMUD) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeMUD) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func testSession(t *testing.T) (*Session, *fakeWS, *fakeMUD) {
	t.Helper()
	s := newSession(strings.Repeat("ab", 32), discord.NewSender(), nil)
	ws := &fakeWS{}
	mud := &fakeMUD{}
	s.mu.Lock()
	s.ws = ws
	s.mud = mud
	s.mu.Unlock()
	return s, ws, mud
}

func TestTriggerGagWithCommandEndToEnd(t *testing.T) {
	s, ws, mud := testSession(t)
	s.SetTriggers([]protocol.Trigger{{
		ID: "t1", Pattern: "^%1 tells you '%2'", Enabled: true,
		Actions: []protocol.TriggerAction{
			{Kind: protocol.ActionGag},
			{Kind: protocol.ActionCommand, Template: "reply %1 got it: %2"},
		},
	}})

	s.mu.Lock()
	s.processLineLocked("Alice tells you 'hello'", false)
	s.mu.Unlock()

	if got := ws.ofType(protocol.TypeMud); len(got) != 0 {
		t.Fatalf("gagged line reached the browser: %+v", got)
	}
	writes := mud.sent()
	if len(writes) != 1 || writes[0] != "reply Alice got it: hello\r\n" {
		t.Fatalf("mud writes = %q", writes)
	}
}

func TestAliasRecursionEndToEnd(t *testing.T) {
	s, _, mud := testSession(t)
	s.SetAliases([]protocol.Alias{
		{Pattern: "kk", MatchType: protocol.MatchExact, Replacement: "kill $1; loot", Enabled: true},
		{Pattern: "loot", MatchType: protocol.MatchExact, Replacement: "get all from corpse", Enabled: true},
	})

	s.HandleCommand("kk kobold", false)

	want := []string{"kill kobold\r\n", "get all from corpse\r\n"}
	got := mud.sent()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("mud writes = %q", got)
	}
}

func TestRawCommandBypassesAliases(t *testing.T) {
	s, _, mud := testSession(t)
	s.SetAliases([]protocol.Alias{
		{Pattern: "kk", MatchType: protocol.MatchExact, Replacement: "kill rat", Enabled: true},
	})

	s.HandleCommand("kk", true)
	got := mud.sent()
	if len(got) != 1 || got[0] != "kk\r\n" {
		t.Fatalf("mud writes = %q", got)
	}
}

func TestRepeatCommandCapped(t *testing.T) {
	s, _, mud := testSession(t)

	s.HandleCommand("#3 nod", false)
	if got := mud.sent(); len(got) != 3 || got[0] != "nod\r\n" {
		t.Fatalf("got %d writes: %q", len(got), got)
	}

	s.HandleCommand("#500 smile", false)
	if got := len(mud.sent()) - 3; got != repeatCap {
		t.Fatalf("repeat cap: got %d writes", got)
	}
}

func TestHashCommandReturnsToBrowser(t *testing.T) {
	s, ws, mud := testSession(t)

	s.HandleCommand("#showme something", false)
	if len(mud.sent()) != 0 {
		t.Fatal("client command must not reach the MUD")
	}
	got := ws.ofType(protocol.TypeClientCommand)
	if len(got) != 1 || got[0].Command != "#showme something" {
		t.Fatalf("got %+v", got)
	}
}

func TestCommandWithoutMUDSocket(t *testing.T) {
	s, ws, _ := testSession(t)
	s.mu.Lock()
	s.mud = nil
	s.mu.Unlock()

	s.HandleCommand("look", false)
	sys := ws.ofType(protocol.TypeSystem)
	if len(sys) != 1 || !strings.Contains(sys[0].Message, "Not connected") {
		t.Fatalf("got %+v", sys)
	}
}

func TestEveryMUDWriteEndsCRLF(t *testing.T) {
	s, _, mud := testSession(t)
	s.HandleCommand("look", false)
	s.HandleCommand("", true)
	for _, w := range mud.sent() {
		if !strings.HasSuffix(w, "\r\n") {
			t.Fatalf("write %q lacks CRLF", w)
		}
	}
}

func TestBufferDropsHeadOnOverflow(t *testing.T) {
	s := newSession(strings.Repeat("cd", 32), discord.NewSender(), nil)

	for i := 0; i < bufferCap+10; i++ {
		s.Send(protocol.Outbound{Type: protocol.TypeMud, Line: strings.Repeat("x", i%7)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) != bufferCap {
		t.Fatalf("buffer len = %d, want %d", len(s.buffer), bufferCap)
	}
	if !s.bufferOverflow {
		t.Fatal("overflow flag must be set")
	}
}

func TestTestLineMarksFrames(t *testing.T) {
	s, ws, _ := testSession(t)
	s.TestLine("a test line")
	got := ws.ofType(protocol.TypeMud)
	if len(got) != 1 || !got[0].Test || got[0].Line != "a test line" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoopDisableSendsFrames(t *testing.T) {
	s, ws, _ := testSession(t)
	s.SetTriggers([]protocol.Trigger{{
		ID: "t9", Pattern: "spam", Enabled: true,
		Actions: []protocol.TriggerAction{{Kind: protocol.ActionSound, Name: "x"}},
	}})

	for i := 0; i < 60; i++ {
		s.TestLine("spam line")
	}

	dis := ws.ofType(protocol.TypeDisableTrigger)
	if len(dis) != 1 || dis[0].TriggerID != "t9" {
		t.Fatalf("disable frames = %+v", dis)
	}
	var loopMsg bool
	for _, m := range ws.ofType(protocol.TypeSystem) {
		if strings.Contains(m.Message, "loop") {
			loopMsg = true
		}
	}
	if !loopMsg {
		t.Fatal("expected a system notice about the loop")
	}
}

func TestMIPFrameGagsLine(t *testing.T) {
	s, ws, _ := testSession(t)
	s.SetMIP(true, "62395", false)

	s.mu.Lock()
	s.processLineLocked("%62395013BAB~Bob~hi there", false)
	s.mu.Unlock()

	if got := ws.ofType(protocol.TypeMud); len(got) != 0 {
		t.Fatalf("MIP-only line leaked to browser: %+v", got)
	}
	if got := ws.ofType(protocol.TypeMIPChat); len(got) != 1 {
		t.Fatalf("chat frames = %+v", got)
	}
}

func TestVariableSubstitution(t *testing.T) {
	s, _, _ := testSession(t)
	s.SetMIP(true, "62395", false)
	s.mu.Lock()
	s.mip.Decode("%62395026FFFA~120~B~200~K~an orc~L~55~")
	got := s.substituteVarsLocked("at $hp/$hpmax vs $enemy ($enemypct%) unknown $nope")
	s.mu.Unlock()

	want := "at 120/200 vs an orc (55%) unknown $nope"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWhitelist(t *testing.T) {
	tests := []struct {
		host string
		port int
		want bool
	}{
		{"3k.org", 3000, true},
		{"3scapes.org", 3200, true},
		{"3k.org", 3200, false},
		{"evil.example.com", 3000, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.host, tt.port); got != tt.want {
			t.Errorf("Allowed(%q, %d) = %v", tt.host, tt.port, got)
		}
	}
}

func TestSetServerRejectsOffWhitelist(t *testing.T) {
	s, ws, _ := testSession(t)
	s.SetServer("evil.example.com", 3000)
	sys := ws.ofType(protocol.TypeSystem)
	if len(sys) != 1 || !strings.Contains(sys[0].Message, "whitelist") {
		t.Fatalf("got %+v", sys)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, ws, _ := testSession(t)
	s.Close()
	s.Close()
	if !ws.closed {
		t.Fatal("browser connection must be closed")
	}
}
