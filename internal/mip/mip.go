// Package mip recognizes and consumes the MUD's in-band side-channel frames.
// A frame looks like [#K]%<mipId:5><length:3><type:3><data:length> and may be
// embedded anywhere in a line. Decoded frames update the session stat record
// or emit chat events; raw MIP bytes never reach the browser.
package mip

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mudlink/mudlink/pkg/protocol"
)

// anyFrameRe matches a MIP header with any session id.
var anyFrameRe = regexp.MustCompile(`%(\d{5})(\d{3})([A-Z]{3})`)

// Decoder holds the per-session MIP state.
type Decoder struct {
	enabled bool
	id      string
	debug   bool

	knownRe *regexp.Regexp // compiled against the session id, with optional #K prefix

	stats protocol.Stats
}

// Configure enables or disables decoding and records the session identifier.
func (d *Decoder) Configure(enabled bool, id string, debug bool) {
	d.enabled = enabled
	d.debug = debug
	if id != d.id {
		d.id = id
		d.knownRe = nil
	}
	if d.id != "" && d.knownRe == nil {
		d.knownRe = regexp.MustCompile(`(?:#K)?%` + regexp.QuoteMeta(d.id) + `(\d{3})([A-Z]{3})`)
	}
}

// Enabled reports whether MIP decoding is active.
func (d *Decoder) Enabled() bool { return d.enabled }

// Stats returns a copy of the current stat snapshot.
func (d *Decoder) Stats() protocol.Stats { return d.stats }

// ResetID clears the session identifier. Used when tearing down a MUD socket
// before a reconnect; the browser re-sends set_mip after logging back in.
func (d *Decoder) ResetID() {
	d.id = ""
	d.knownRe = nil
}

// Result is the outcome of decoding one line.
type Result struct {
	// Residue is the surviving text to run through the trigger engine.
	// Empty when the whole line was consumed.
	Residue string
	// Consumed reports whether a MIP frame was found and removed.
	Consumed bool
	// Events are the mip_stats / mip_chat / mip_debug frames to emit.
	Events []protocol.Outbound
}

// Decode runs first on every line, before trigger evaluation.
func (d *Decoder) Decode(line string) Result {
	if !d.enabled {
		return Result{Residue: line}
	}

	// Session id not yet known: strip every embedded frame (both forms) and
	// pass through whatever text remains.
	if d.id == "" {
		residue, stripped := stripAllFrames(line)
		if !stripped {
			return Result{Residue: line}
		}
		return Result{Residue: residue, Consumed: true}
	}

	// Known id, either #K%<id>... or bare %<id>...: consume the frame,
	// dispatch it, and keep the surrounding text.
	if m := d.knownRe.FindStringSubmatchIndex(line); m != nil {
		length, _ := strconv.Atoi(line[m[2]:m[3]])
		msgType := line[m[4]:m[5]]

		data := line[m[5]:]
		if len(data) > length {
			data = data[:length]
		}
		after := line[min(m[5]+length, len(line)):]

		res := Result{Consumed: true}
		if d.debug {
			res.Events = append(res.Events, protocol.Outbound{
				Type: protocol.TypeMIPDebug, MsgType: msgType, MsgData: data,
			})
		}
		res.Events = append(res.Events, d.dispatch(msgType, data)...)

		residue, _ := stripAllFrames(line[:m[0]] + after)
		// Intentional quirk carried over from the original client: a stray
		// leading "]" left behind by frame removal is trimmed.
		residue = strings.TrimPrefix(residue, "]")
		res.Residue = residue
		return res
	}

	// A frame with some other session id: first line of defense, the whole
	// line is dropped so no payload byte can leak to the browser.
	if anyFrameRe.MatchString(line) {
		return Result{Consumed: true}
	}

	return Result{Residue: line}
}

// stripAllFrames removes every [#K]%<5d><3d><3A><data:len> frame from line.
func stripAllFrames(line string) (string, bool) {
	stripped := false
	for {
		m := anyFrameRe.FindStringIndex(line)
		if m == nil {
			return line, stripped
		}
		stripped = true

		start := m[0]
		if start >= 2 && line[start-2:start] == "#K" {
			start -= 2
		}
		length, _ := strconv.Atoi(line[m[0]+6 : m[0]+9])
		end := min(m[1]+length, len(line))
		line = line[:start] + line[end:]
	}
}

// renderDays renders a fractional day count as "Xd Yh", or "Yh" when under a
// day. 3.7 days → "3d 17h".
func renderDays(data string) string {
	numRe := regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	m := numRe.FindStringSubmatch(data)
	if m == nil {
		return ""
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ""
	}
	days := int(f)
	hours := int((f-float64(days))*24 + 0.5)
	if hours == 24 {
		days++
		hours = 0
	}
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh", hours)
}
