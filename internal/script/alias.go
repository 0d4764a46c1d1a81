package script

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mudlink/mudlink/pkg/protocol"
)

// maxAliasDepth bounds recursive alias expansion. Past the bound the current
// token is emitted without further expansion.
const maxAliasDepth = 10

// SplitCommands splits a command string on unescaped semicolons and newlines
// at brace depth 0, trimming each part. Braced groups keep their semicolons:
// "a;b" → [a b], "say {one;two};n" → [say {one;two}, n].
func SplitCommands(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			cur.WriteByte(s[i+1])
			i++
		case c == '{':
			depth++
			cur.WriteByte(c)
		case c == '}':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case (c == ';' || c == '\n') && depth == 0:
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, strings.TrimSpace(cur.String()))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandAliases recursively rewrites a command through the ordered alias
// list. The result preserves order; every returned command is fully expanded
// (or was abandoned at the recursion bound).
func ExpandAliases(command string, aliases []protocol.Alias) []string {
	return expandAliases(command, aliases, 0)
}

func expandAliases(command string, aliases []protocol.Alias, depth int) []string {
	parts := SplitCommands(command)
	if depth >= maxAliasDepth {
		return parts
	}

	var out []string
	for _, part := range parts {
		repl, ok := matchAlias(part, aliases)
		if !ok {
			out = append(out, part)
			continue
		}
		out = append(out, expandAliases(repl, aliases, depth+1)...)
	}
	return out
}

// matchAlias walks the alias list in order and returns the substituted
// replacement of the first match.
func matchAlias(command string, aliases []protocol.Alias) (string, bool) {
	for _, a := range aliases {
		if !a.Enabled {
			continue
		}
		switch a.MatchType {
		case protocol.MatchExact:
			fields := strings.Fields(command)
			if len(fields) == 0 || !strings.EqualFold(fields[0], a.Pattern) {
				continue
			}
			return substituteArgs(a.Replacement, fields[1:]), true

		case protocol.MatchStartsWith:
			if command != a.Pattern && !strings.HasPrefix(command, a.Pattern+" ") {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(command, a.Pattern))
			return substituteArgs(a.Replacement, strings.Fields(rest)), true

		case protocol.MatchTinTin:
			src, err := TinTinToRegex(a.Pattern)
			if err != nil {
				slog.Debug("alias.pattern_invalid", "pattern", a.Pattern, "error", err)
				continue
			}
			re, err := regexp.Compile("(?i)^" + src + "$")
			if err != nil {
				slog.Debug("alias.pattern_invalid", "pattern", a.Pattern, "error", err)
				continue
			}
			m := re.FindStringSubmatch(command)
			if m == nil {
				continue
			}
			return Substitute(a.Replacement, m), true

		case protocol.MatchRegex:
			re, err := regexp.Compile("(?i)" + a.Pattern)
			if err != nil {
				slog.Debug("alias.pattern_invalid", "pattern", a.Pattern, "error", err)
				continue
			}
			m := re.FindStringSubmatch(command)
			if m == nil {
				continue
			}
			return substituteDollarRefs(a.Replacement, m), true
		}
	}
	return "", false
}

var dollarRefRe = regexp.MustCompile(`\$(\*|\d{1,2})`)

// substituteArgs fills $*, $1..$N in the replacement from the argument words
// of an exact/startsWith match. Unmatched $N references are stripped.
func substituteArgs(replacement string, args []string) string {
	return dollarRefRe.ReplaceAllStringFunc(replacement, func(m string) string {
		if m == "$*" {
			return strings.Join(args, " ")
		}
		idx, _ := strconv.Atoi(m[1:])
		if idx >= 1 && idx <= len(args) {
			return args[idx-1]
		}
		return ""
	})
}

// substituteDollarRefs fills $0..$N from regex capture groups.
func substituteDollarRefs(replacement string, captures []string) string {
	return dollarRefRe.ReplaceAllStringFunc(replacement, func(m string) string {
		if m == "$*" {
			return ""
		}
		idx, _ := strconv.Atoi(m[1:])
		if idx < len(captures) {
			return captures[idx]
		}
		return ""
	})
}
