// Package telnet turns the raw MUD byte stream into logical lines. It strips
// IAC command sequences, detects Go-Ahead, and carries incomplete lines and
// truncated sequences across packet boundaries.
package telnet

import "bytes"

// Telnet IAC (Interpret As Command) constants.
const (
	IAC  = 255
	DONT = 254
	DO   = 253
	WONT = 252
	WILL = 251
	SB   = 250 // subnegotiation begin
	GA   = 249 // Go Ahead, marks end of prompt
	SE   = 240 // subnegotiation end
)

// Assembler reassembles newline-terminated lines from arbitrary packet
// chunks. It never loses bytes: a truncated IAC sequence is kept as residual
// for the next Feed, and a trailing partial line waits for more data, a GA,
// or the caller's packet-patch timeout.
type Assembler struct {
	partial  []byte // cleaned text awaiting a line terminator
	residual []byte // truncated IAC sequence from the previous packet
}

// Feed consumes one packet and returns the complete lines it produced.
// hasGA reports whether the packet contained IAC GA; when it does, the
// trailing partial is flushed as a line too.
func (a *Assembler) Feed(data []byte) (lines []string, hasGA bool) {
	buf := data
	if len(a.residual) > 0 {
		buf = append(a.residual, data...)
		a.residual = nil
	}

	cleaned, ga, residual := stripIAC(buf)
	a.residual = residual

	stream := append(a.partial, cleaned...)
	a.partial = nil

	if len(stream) == 0 {
		return nil, ga
	}

	endsLF := stream[len(stream)-1] == '\n'
	parts := bytes.Split(stream, []byte{'\n'})
	if endsLF {
		parts = parts[:len(parts)-1]
	}

	for i, p := range parts {
		if !ga && !endsLF && i == len(parts)-1 {
			a.partial = append([]byte(nil), p...)
			break
		}
		lines = append(lines, string(p))
	}
	return lines, ga
}

// Pending reports whether a partial line is waiting for more data.
func (a *Assembler) Pending() bool { return len(a.partial) > 0 }

// FlushPartial releases the pending partial line, if any. The session calls
// this when the packet-patch timer fires before more data arrives.
func (a *Assembler) FlushPartial() (line string, ok bool) {
	if len(a.partial) == 0 {
		return "", false
	}
	line = string(a.partial)
	a.partial = nil
	return line, true
}

// Reset drops all buffered state. Used when tearing down a MUD socket before
// a reconnect.
func (a *Assembler) Reset() {
	a.partial = nil
	a.residual = nil
}

// stripIAC removes telnet command sequences from buf. CR bytes are dropped so
// lines are terminated by bare LF. A sequence truncated at the end of buf is
// returned as residual.
func stripIAC(buf []byte) (cleaned []byte, ga bool, residual []byte) {
	cleaned = make([]byte, 0, len(buf))
	i := 0
	for i < len(buf) {
		b := buf[i]
		if b != IAC {
			if b != '\r' {
				cleaned = append(cleaned, b)
			}
			i++
			continue
		}

		if i+1 >= len(buf) {
			residual = append([]byte(nil), buf[i:]...)
			return cleaned, ga, residual
		}

		switch cmd := buf[i+1]; cmd {
		case IAC:
			// Escaped 0xFF is a literal byte.
			cleaned = append(cleaned, IAC)
			i += 2
		case WILL, WONT, DO, DONT:
			if i+2 >= len(buf) {
				residual = append([]byte(nil), buf[i:]...)
				return cleaned, ga, residual
			}
			i += 3
		case SB:
			end := -1
			for j := i + 2; j+1 < len(buf); j++ {
				if buf[j] == IAC && buf[j+1] == SE {
					end = j + 2
					break
				}
			}
			if end < 0 {
				residual = append([]byte(nil), buf[i:]...)
				return cleaned, ga, residual
			}
			i = end
		case GA:
			ga = true
			i += 2
		default:
			i += 2
		}
	}
	return cleaned, ga, nil
}
