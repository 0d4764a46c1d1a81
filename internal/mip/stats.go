package mip

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mudlink/mudlink/pkg/protocol"
)

// dispatch applies one decoded frame to the stat record and returns the
// outbound frames it produced.
func (d *Decoder) dispatch(msgType, data string) []protocol.Outbound {
	switch msgType {
	case "FFF":
		d.applyVitals(data)
		stats := d.stats
		return []protocol.Outbound{{Type: protocol.TypeMIPStats, Stats: &stats}}

	case "BAD":
		d.stats.Room = cleanRoom(data)

	case "DDD":
		var exits []string
		for _, e := range strings.Split(data, "~") {
			if e != "" {
				exits = append(exits, e)
			}
		}
		d.stats.Exits = strings.Join(exits, ",")

	case "BBA":
		d.stats.GP1Label = data
	case "BBB":
		d.stats.GP2Label = data
	case "BBC":
		d.stats.HPLabel = data
	case "BBD":
		d.stats.SPLabel = data

	case "BAB":
		return []protocol.Outbound{d.tellEvent(data)}

	case "CAA":
		if ev, ok := d.channelEvent(data); ok {
			return []protocol.Outbound{ev}
		}

	case "AAC":
		d.stats.Reboot = renderDays(data)
	case "AAF":
		d.stats.Uptime = renderDays(data)

	case "BAE", "HAA", "HAB":
		// Recognized and ignored.
	}
	return nil
}

// applyVitals parses the tilde-separated key~value pairs of an FFF frame.
func (d *Decoder) applyVitals(data string) {
	parts := strings.Split(data, "~")
	for i := 0; i+1 < len(parts); i += 2 {
		key, val := parts[i], parts[i+1]
		switch key {
		case "A":
			d.stats.HP.Current = atoi(val)
		case "B":
			d.stats.HP.Max = atoi(val)
		case "C":
			d.stats.SP.Current = atoi(val)
		case "D":
			d.stats.SP.Max = atoi(val)
		case "E":
			d.stats.GP1.Current = atoi(val)
		case "F":
			d.stats.GP1.Max = atoi(val)
		case "G":
			d.stats.GP2.Current = atoi(val)
		case "H":
			d.stats.GP2.Max = atoi(val)
		case "K":
			d.stats.Enemy = val
		case "L":
			d.stats.EnemyPct = val
		case "N":
			d.stats.Round = atoi(val)
		case "I":
			d.stats.GuildRaw = val
		case "J":
			d.stats.GuildColor = val
		}
	}
	d.stats.Vars = parseGuildVars(d.stats.GuildRaw, d.stats.GuildColor)
}

var (
	// The four guild-line patterns run in this exact order; the first writer
	// wins when both bracketed and bare percent forms name the same stat.
	guildRatioRe      = regexp.MustCompile(`(\w+):\s*\[(\d+)\s*/\s*(\d+)\]`)
	guildBracketPctRe = regexp.MustCompile(`(\w+):\s*\[(\d+)%\]`)
	guildBarePctRe    = regexp.MustCompile(`(\w+):\s*(\d+)%`)
	guildSingleRe     = regexp.MustCompile(`(\w+):\s*\[(\d+)\]`)
)

// parseGuildVars extracts named variables like "Stance: [3/5]" or
// "Focus:[80%]" from the concatenation of the two guild lines.
func parseGuildVars(raw, colorized string) map[string]string {
	text := raw + " " + StripColors(colorized)
	vars := make(map[string]string)

	set := func(key, val string) {
		if _, ok := vars[key]; !ok {
			vars[key] = val
		}
	}

	for _, m := range guildRatioRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		set(name+"_current", m[2])
		set(name+"_max", m[3])
	}
	for _, m := range guildBracketPctRe.FindAllStringSubmatch(text, -1) {
		set(strings.ToLower(m[1])+"_pct", m[2])
	}
	for _, m := range guildBarePctRe.FindAllStringSubmatch(text, -1) {
		set(strings.ToLower(m[1])+"_pct", m[2])
	}
	for _, m := range guildSingleRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if _, ok := vars[name+"_current"]; ok {
			continue
		}
		set(name, m[2])
	}

	if len(vars) == 0 {
		return nil
	}
	return vars
}

// tellEvent builds the mip_chat frame for a BAB (tell) message.
// Inbound form: ~<sender>~<msg>; outbound form: x~<recipient>~<msg>.
func (d *Decoder) tellEvent(data string) protocol.Outbound {
	parts := strings.SplitN(data, "~", 3)
	var text string
	switch {
	case len(parts) == 3 && parts[0] == "":
		text = fmt.Sprintf("%s tells you: %s", parts[1], parts[2])
	case len(parts) == 3:
		text = fmt.Sprintf("You tell %s: %s", parts[1], parts[2])
	default:
		text = data
	}
	return protocol.Outbound{
		Type:     protocol.TypeMIPChat,
		ChatType: "tell",
		Channel:  "tell",
		Raw:      Colorize(text),
		RawText:  StripColors(text),
		Message:  StripColors(text),
	}
}

// channelEvent builds the mip_chat frame for a CAA (channel) message.
// Payload is <channel>~…~<msg> (≥4 parts) or <channel>~<msg>. Divvy-of-coins
// noise on the money channels is suppressed.
func (d *Decoder) channelEvent(data string) (protocol.Outbound, bool) {
	parts := strings.Split(data, "~")
	if len(parts) < 2 {
		return protocol.Outbound{}, false
	}
	channel := strings.ToLower(parts[0])
	body := parts[len(parts)-1]

	if strings.Contains(body, "divvies up") {
		return protocol.Outbound{}, false
	}

	text := fmt.Sprintf("[%s] %s", parts[0], body)
	return protocol.Outbound{
		Type:     protocol.TypeMIPChat,
		ChatType: "channel",
		Channel:  channel,
		Raw:      Colorize(text),
		RawText:  StripColors(text),
		Message:  StripColors(text),
	}, true
}

// cleanRoom strips the trailing " (…)" annotation and "~NN" suffix from a
// BAD room payload.
var (
	roomTildeRe = regexp.MustCompile(`~\d+\s*$`)
	roomParenRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

func cleanRoom(data string) string {
	s := roomTildeRe.ReplaceAllString(data, "")
	s = roomParenRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
