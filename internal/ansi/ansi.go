// Package ansi tracks SGR color state across line boundaries. MUDs emit one
// SGR at the start of a colored block that spans several lines; splitting on
// LF would lose the color on every line but the first.
package ansi

import (
	"regexp"
	"strings"
)

var sgrRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Strip removes all SGR sequences from s.
func Strip(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return sgrRe.ReplaceAllString(s, "")
}

// Carry holds the last non-reset SGR sequence seen on the stream.
type Carry struct {
	last string
}

// Apply returns line with the carried SGR prepended when the line does not
// start with its own SGR, then advances the carry state from the SGR
// sequences inside the line.
func (c *Carry) Apply(line string) string {
	out := line
	if c.last != "" {
		loc := sgrRe.FindStringIndex(line)
		if loc == nil || loc[0] != 0 {
			out = c.last + line
		}
	}

	for _, seq := range sgrRe.FindAllString(line, -1) {
		if isReset(seq) {
			c.last = ""
		} else {
			c.last = seq
		}
	}
	return out
}

// Current returns the carried SGR sequence, empty after a reset.
func (c *Carry) Current() string { return c.last }

// Reset clears the carry. Used when tearing down a MUD socket.
func (c *Carry) Reset() { c.last = "" }

func isReset(seq string) bool {
	return seq == "\x1b[m" || seq == "\x1b[0m"
}
