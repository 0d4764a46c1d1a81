package mip

import (
	"strings"
	"testing"

	"github.com/mudlink/mudlink/pkg/protocol"
)

func configured(t *testing.T, id string) *Decoder {
	t.Helper()
	var d Decoder
	d.Configure(true, id, false)
	return &d
}

func TestDecodeDisabledPassesThrough(t *testing.T) {
	var d Decoder
	line := "text with %12345008AACpayload!"
	res := d.Decode(line)
	if res.Consumed || res.Residue != line {
		t.Fatalf("disabled decoder must not touch the line: %+v", res)
	}
}

func TestDecodeKnownIDKeepsSurroundingText(t *testing.T) {
	d := configured(t, "62395")

	res := d.Decode("You see a bird.#K%62395011AAC3.7 days")
	if !res.Consumed {
		t.Fatal("expected frame consumption")
	}
	if res.Residue != "You see a bird." {
		t.Fatalf("residue = %q", res.Residue)
	}
	if got := d.Stats().Reboot; got != "3d 17h" {
		t.Fatalf("reboot = %q, want 3d 17h", got)
	}
}

func TestDecodePayloadNeverLeaks(t *testing.T) {
	d := configured(t, "62395")

	// Payload bytes beyond the frame length stay in the residue; bytes inside
	// the length are consumed exactly.
	res := d.Decode("before %62395003BBChps after")
	if res.Residue != "before  after" {
		t.Fatalf("residue = %q", res.Residue)
	}
	if got := d.Stats().HPLabel; got != "hps" {
		t.Fatalf("hp label = %q", got)
	}
}

func TestDecodeWholeLineFrame(t *testing.T) {
	d := configured(t, "62395")
	res := d.Decode("%62395033FFFA~100~B~200~C~50~D~80~K~orc~L~45~")
	if !res.Consumed || res.Residue != "" {
		t.Fatalf("got %+v", res)
	}
	if len(res.Events) != 1 || res.Events[0].Type != protocol.TypeMIPStats {
		t.Fatalf("events = %+v", res.Events)
	}
	s := d.Stats()
	if s.HP.Current != 100 || s.HP.Max != 200 || s.SP.Current != 50 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestDecodeForeignIDDropsLine(t *testing.T) {
	d := configured(t, "62395")
	res := d.Decode("secret %99999010BBCsomething else")
	if !res.Consumed || res.Residue != "" {
		t.Fatalf("foreign frame must drop the whole line: %+v", res)
	}
	if len(res.Events) != 0 {
		t.Fatalf("foreign frame must not dispatch: %+v", res.Events)
	}
}

func TestDecodeUnknownIDStripsAllFrames(t *testing.T) {
	var d Decoder
	d.Configure(true, "", false)

	res := d.Decode("hello #K%11111004AACdata world %22222003BBCxyz!")
	if !res.Consumed {
		t.Fatal("expected stripping")
	}
	if res.Residue != "hello  world !" {
		t.Fatalf("residue = %q", res.Residue)
	}
}

func TestDecodeLeadingBracketTrimmed(t *testing.T) {
	d := configured(t, "62395")
	// Frame removal can leave the closing half of a wrapped frame behind.
	res := d.Decode("%62395004AACdata]prompt")
	if res.Residue != "prompt" {
		t.Fatalf("residue = %q", res.Residue)
	}
}

func TestDecodeDebugEvent(t *testing.T) {
	var d Decoder
	d.Configure(true, "62395", true)

	res := d.Decode("%62395004AACdata")
	if len(res.Events) == 0 || res.Events[0].Type != protocol.TypeMIPDebug {
		t.Fatalf("expected mip_debug first, got %+v", res.Events)
	}
	if res.Events[0].MsgType != "AAC" || res.Events[0].MsgData != "data" {
		t.Fatalf("debug payload = %+v", res.Events[0])
	}
}

func TestResetID(t *testing.T) {
	d := configured(t, "62395")
	d.ResetID()
	res := d.Decode("x %62395004AACdata y")
	// Without an id the decoder falls back to stripping.
	if res.Residue != "x  y" {
		t.Fatalf("residue = %q", res.Residue)
	}
}

func TestRenderDays(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3.7 days", "3d 17h"},
		{"0.5", "12h"},
		{"2", "2d 0h"},
		{"0.99", "1d 0h"}, // 23.76h rounds up to 24
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := renderDays(tt.in); got != tt.want {
			t.Errorf("renderDays(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTellEvents(t *testing.T) {
	d := configured(t, "62395")

	res := d.Decode("%62395013BAB~Bob~hi there")
	if len(res.Events) != 1 {
		t.Fatalf("events = %+v", res.Events)
	}
	ev := res.Events[0]
	if ev.Type != protocol.TypeMIPChat || ev.Channel != "tell" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Message != "Bob tells you: hi there" {
		t.Fatalf("message = %q", ev.Message)
	}

	res = d.Decode("%62395013BABx~Bob~hi back")
	if got := res.Events[0].Message; got != "You tell Bob: hi back" {
		t.Fatalf("message = %q", got)
	}
}

func TestChannelEvent(t *testing.T) {
	d := configured(t, "62395")

	res := d.Decode("%62395022CAAGossip~Bob~says~hi all")
	if len(res.Events) != 1 {
		t.Fatalf("events = %+v", res.Events)
	}
	ev := res.Events[0]
	if ev.Channel != "gossip" {
		t.Fatalf("channel = %q", ev.Channel)
	}
	if ev.Message != "[Gossip] hi all" {
		t.Fatalf("message = %q", ev.Message)
	}
}

func TestChannelEventSuppressesDivvy(t *testing.T) {
	d := configured(t, "62395")
	res := d.Decode("%62395035CAAmoney~The party divvies up the loot")
	if len(res.Events) != 0 {
		t.Fatalf("divvy noise must be suppressed: %+v", res.Events)
	}
}

func TestGuildVars(t *testing.T) {
	d := configured(t, "62395")
	d.applyVitals("A~100~B~200~I~Stance: [3/5] Focus: [80%] Rage: 40% Ki: [7]~")

	vars := d.Stats().Vars
	want := map[string]string{
		"stance_current": "3",
		"stance_max":     "5",
		"focus_pct":      "80",
		"rage_pct":       "40",
		"ki":             "7",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%q] = %q, want %q (all: %v)", k, vars[k], v, vars)
		}
	}
}

func TestGuildVarsRatioWinsOverSingle(t *testing.T) {
	d := configured(t, "62395")
	// The ratio parse runs first; a later pattern must never introduce a
	// conflicting bare "stance" key for the same stat.
	d.applyVitals("I~Stance: [3/5] Stance: [9]~")
	vars := d.Stats().Vars
	if vars["stance_current"] != "3" || vars["stance_max"] != "5" {
		t.Fatalf("vars = %v", vars)
	}
	if _, ok := vars["stance"]; ok {
		t.Fatalf("bare key must not appear when ratio matched: %v", vars)
	}
}

func TestCleanRoom(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"The Town Square~42", "The Town Square"},
		{"Temple Yard (indoors)", "Temple Yard"},
		{"Plain Room", "Plain Room"},
	}
	for _, tt := range tests {
		if got := cleanRoom(tt.in); got != tt.want {
			t.Errorf("cleanRoom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPalette(t *testing.T) {
	in := "<rBob> waves <ghello>"
	if got := StripColors(in); got != "Bob waves hello" {
		t.Fatalf("StripColors = %q", got)
	}
	col := Colorize(in)
	if !strings.Contains(col, `<hl style="color:red">Bob</hl>`) ||
		!strings.Contains(col, `<hl style="color:green">hello</hl>`) {
		t.Fatalf("Colorize = %q", col)
	}
}
