package script

import (
	"log/slog"
	"strings"
	"time"

	"github.com/mudlink/mudlink/pkg/protocol"
)

// Loop detection: a trigger firing loopLimit times inside loopWindow is
// disabled for the rest of the session. The tripping fire is itself skipped.
const (
	loopWindow = 2 * time.Second
	loopLimit  = 50
)

// DiscordEffect is a queued discord side effect from a trigger.
type DiscordEffect struct {
	WebhookURL string
	Message    string
}

// ChatmonEffect is a queued chatmon side effect from a trigger.
type ChatmonEffect struct {
	Message string
	Channel string
}

// Result accumulates the actions of every trigger that matched one line.
type Result struct {
	Line        string
	Gag         bool
	Highlighted bool
	Sound       string
	Commands    []string
	Discord     []DiscordEffect
	Chatmon     []ChatmonEffect
	// Disabled lists trigger ids tripped by loop detection on this line.
	Disabled []string
}

type fireWindow struct {
	count     int
	firstFire time.Time
}

// Engine evaluates the ordered trigger set against lines. One engine per
// session; it owns the loop tracker and the pattern cache.
type Engine struct {
	fires map[string]*fireWindow
	dead  map[string]bool
	cache map[string]*Compiled
	now   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		fires: make(map[string]*fireWindow),
		dead:  make(map[string]bool),
		cache: make(map[string]*Compiled),
		now:   time.Now,
	}
}

// Apply walks the ordered trigger set over line. Matching triggers compose
// their actions on the accumulator; substitutes rewrite the working line, so
// later triggers see the edits of earlier ones.
func (e *Engine) Apply(line string, triggers []protocol.Trigger) Result {
	r := Result{Line: line}

	for i := range triggers {
		t := &triggers[i]
		if !t.Enabled || e.dead[t.ID] {
			continue
		}

		span, captures := e.match(r.Line, t.Pattern)
		if span == nil {
			continue
		}

		if e.recordFire(t.ID) {
			e.dead[t.ID] = true
			r.Disabled = append(r.Disabled, t.ID)
			continue
		}

		for _, a := range t.Actions {
			switch a.Kind {
			case protocol.ActionGag:
				r.Gag = true
			case protocol.ActionHighlight:
				hl := highlightSpan(r.Line[span[0]:span[1]], a)
				r.Line = r.Line[:span[0]] + hl + r.Line[span[1]:]
				// The span tracks the rewritten text so a following
				// substitute slices valid indices.
				span[1] = span[0] + len(hl)
				r.Highlighted = true
			case protocol.ActionSubstitute:
				sub := Substitute(a.Template, captures)
				r.Line = r.Line[:span[0]] + sub + r.Line[span[1]:]
				span[1] = span[0] + len(sub)
			case protocol.ActionCommand:
				r.Commands = append(r.Commands, Substitute(a.Template, captures))
			case protocol.ActionSound:
				r.Sound = a.Name
			case protocol.ActionDiscord:
				r.Discord = append(r.Discord, DiscordEffect{
					WebhookURL: a.WebhookURL,
					Message:    Substitute(a.Message, captures),
				})
			case protocol.ActionChatmon:
				r.Chatmon = append(r.Chatmon, ChatmonEffect{
					Message: Substitute(a.Message, captures),
					Channel: a.Channel,
				})
			}
		}
	}
	return r
}

// ResetRules clears the pattern cache. Called on set_triggers.
func (e *Engine) ResetRules() {
	e.cache = make(map[string]*Compiled)
}

// match returns the [start,end) span of the first match and the capture
// values (%0 = full match), or nil when the trigger does not fire.
func (e *Engine) match(line, pattern string) ([]int, []string) {
	c, ok := e.cache[pattern]
	if !ok {
		var err error
		c, err = Compile(pattern)
		if err != nil {
			slog.Debug("trigger.pattern_invalid", "pattern", pattern, "error", err)
			c = &Compiled{}
		}
		e.cache[pattern] = c
	}

	if c.Re == nil {
		if c.Literal == "" {
			return nil, nil
		}
		idx := strings.Index(line, c.Literal)
		if idx < 0 {
			return nil, nil
		}
		span := []int{idx, idx + len(c.Literal)}
		return span, []string{c.Literal}
	}

	m := c.Re.FindStringSubmatchIndex(line)
	if m == nil {
		return nil, nil
	}
	captures := make([]string, 0, len(m)/2)
	for g := 0; g*2 < len(m); g++ {
		if m[g*2] < 0 {
			captures = append(captures, "")
			continue
		}
		captures = append(captures, line[m[g*2]:m[g*2+1]])
	}
	return []int{m[0], m[1]}, captures
}

// recordFire advances the sliding window for a trigger and reports whether
// this fire trips loop detection.
func (e *Engine) recordFire(id string) bool {
	now := e.now()
	w := e.fires[id]
	if w == nil || now.Sub(w.firstFire) > loopWindow {
		e.fires[id] = &fireWindow{count: 1, firstFire: now}
		return false
	}
	w.count++
	return w.count >= loopLimit
}

// highlightSpan wraps the matched text in a neutral <hl> tag carrying the
// style hints for the browser to render.
func highlightSpan(text string, a protocol.TriggerAction) string {
	var style []string
	if a.Fg != "" {
		style = append(style, "color:"+a.Fg)
	}
	if a.Bg != "" {
		style = append(style, "background-color:"+a.Bg)
	}
	var deco []string
	if a.Blink {
		deco = append(deco, "blink")
	}
	if a.Underline {
		deco = append(deco, "underline")
	}
	if len(deco) > 0 {
		style = append(style, "text-decoration:"+strings.Join(deco, " "))
	}
	return `<hl style="` + strings.Join(style, ";") + `">` + text + `</hl>`
}
