// Package script implements the server-side scripting subset: TinTin-style
// pattern compilation, the trigger engine, and the alias expander. Running
// these server-side is the point of the proxy — automation keeps firing
// while no browser is attached.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mudlink/mudlink/internal/ansi"
)

// tintinHintRe decides whether a pattern is TinTin-style or a plain
// "contains" literal.
var tintinHintRe = regexp.MustCompile(`%[*+?.dDwWsSaAcCpPuUi0-9!]`)

// Compiled is a trigger or alias pattern ready for matching.
type Compiled struct {
	// Literal is set for plain patterns matched by case-sensitive substring.
	Literal string
	// Re is set for TinTin-style and regex patterns.
	Re *regexp.Regexp
}

// IsTinTin reports whether pattern uses TinTin wildcards, anchors, or an
// unescaped {…} group.
func IsTinTin(pattern string) bool {
	if tintinHintRe.MatchString(pattern) {
		return true
	}
	if strings.HasPrefix(pattern, "^") || strings.HasSuffix(pattern, "$") {
		return true
	}
	return hasUnescapedBraces(pattern)
}

func hasUnescapedBraces(pattern string) bool {
	open := false
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '{':
			open = true
		case '}':
			if open {
				return true
			}
		}
	}
	return false
}

// Compile turns a pattern string into a matcher. Literal patterns match by
// substring; TinTin patterns are compiled to a regexp, unanchored unless the
// pattern carried ^/$ itself.
func Compile(pattern string) (*Compiled, error) {
	if !IsTinTin(pattern) {
		return &Compiled{Literal: pattern}, nil
	}
	src, err := TinTinToRegex(pattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &Compiled{Re: re}, nil
}

// wildcard classes for %d, %w and friends. The lowercase letter names the
// class; the uppercase letter is its complement.
var wildcardClass = map[byte]string{
	'd': `[0-9]`,
	'D': `[^0-9]`,
	'w': `[A-Za-z]`,
	'W': `[^A-Za-z]`,
	's': `\s`,
	'S': `\S`,
	'a': `[\s\S]`,
	'A': `[\n]`,
	'p': `[\x20-\x7e]`,
	'P': `[^\x20-\x7e]`,
	'u': `[^\x00-\x7f]`,
	'U': `[\x00-\x7f]`,
}

// TinTinToRegex translates a TinTin-style pattern into Go regexp syntax.
func TinTinToRegex(pattern string) (string, error) {
	var b strings.Builder
	i := 0
	n := len(pattern)

	for i < n {
		ch := pattern[i]

		switch {
		case ch == '\\' && i+1 < n:
			b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
			i += 2

		case ch == '^' && i == 0:
			b.WriteByte('^')
			i++

		case ch == '$' && i == n-1:
			b.WriteByte('$')
			i++

		case ch == '{':
			end := braceEnd(pattern, i)
			if end < 0 {
				b.WriteString(regexp.QuoteMeta("{"))
				i++
				break
			}
			b.WriteString("(" + pattern[i+1:end] + ")")
			i = end + 1

		case ch == '%' && i+1 < n:
			adv, err := translateWildcard(&b, pattern[i+1:], true)
			if err != nil {
				return "", err
			}
			if adv == 0 {
				b.WriteString(regexp.QuoteMeta("%"))
				i++
				break
			}
			i += 1 + adv

		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
			i++
		}
	}
	return b.String(), nil
}

// braceEnd returns the index of the matching unescaped close brace, or -1.
func braceEnd(pattern string, open int) int {
	depth := 0
	for i := open; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// translateWildcard emits the regexp for the wildcard following a '%'. rest
// starts just after the '%'; capture selects a capturing or non-capturing
// group. Returns the number of rest bytes consumed, 0 when the '%' is not a
// wildcard at all.
func translateWildcard(b *strings.Builder, rest string, capture bool) (int, error) {
	if rest == "" {
		return 0, nil
	}

	lp, rp := "(", ")"
	if !capture {
		lp = "(?:"
	}

	switch c := rest[0]; {
	case c == '!':
		// %!x is the non-capturing variant of %x.
		adv, err := translateWildcard(b, rest[1:], false)
		if err != nil || adv == 0 {
			return 0, err
		}
		return 1 + adv, nil

	case c >= '0' && c <= '9':
		// %N capture placeholder, one or two digits.
		adv := 1
		if len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9' {
			adv = 2
		}
		b.WriteString(lp + ".*" + rp)
		return adv, nil

	case c == '*':
		b.WriteString(lp + ".*" + rp)
		return 1, nil

	case c == '+':
		// Either the quantified form %+min[..max]<class> or plain %+.
		if adv, ok := translateQuantified(b, rest[1:], lp, rp); ok {
			return 1 + adv, nil
		}
		b.WriteString(lp + ".+" + rp)
		return 1, nil

	case c == '?':
		b.WriteString(lp + ".?" + rp)
		return 1, nil

	case c == '.':
		b.WriteString(lp + "." + rp)
		return 1, nil

	case c == 'c':
		// Color codes: always non-capturing.
		b.WriteString(`(?:\x1b\[[0-9;]*m)*`)
		return 1, nil

	case c == 'i' || c == 'I':
		// Consumed; matching stays case-sensitive by default.
		return 1, nil

	case c == '{':
		// %{…} is only meaningful after %!; bare form falls through to the
		// brace handler via the caller.
		end := braceEnd(rest, 0)
		if end < 0 {
			return 0, nil
		}
		b.WriteString(lp + rest[1:end] + rp)
		return end + 1, nil

	default:
		if class, ok := wildcardClass[c]; ok {
			b.WriteString(lp + class + "+" + rp)
			return 1, nil
		}
		return 0, nil
	}
}

// translateQuantified handles %+min[..max]<class>, e.g. %+2d or %+2..5w.
func translateQuantified(b *strings.Builder, rest, lp, rp string) (int, bool) {
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	minRep := rest[:i]
	maxRep := ""

	j := i
	if strings.HasPrefix(rest[j:], "..") {
		j += 2
		k := j
		for k < len(rest) && rest[k] >= '0' && rest[k] <= '9' {
			k++
		}
		if k == j {
			return 0, false
		}
		maxRep = rest[j:k]
		j = k
	}

	if j >= len(rest) {
		return 0, false
	}
	class, ok := wildcardClass[rest[j]]
	if !ok {
		return 0, false
	}

	quant := "{" + minRep + "," + maxRep + "}"
	if maxRep == "" {
		quant = "{" + minRep + "," + minRep + "}"
	}
	b.WriteString(lp + class + quant + rp)
	return j + 1, true
}

var capRefRe = regexp.MustCompile(`%(\d{1,2})`)

// Substitute replaces %0..%99 references in template with the corresponding
// capture. %0 is the full match. Captured values have SGR sequences stripped
// so color codes cannot become commands; unmatched references are removed.
func Substitute(template string, captures []string) string {
	return capRefRe.ReplaceAllStringFunc(template, func(m string) string {
		idx, _ := strconv.Atoi(m[1:])
		if idx < len(captures) {
			return ansi.Strip(captures[idx])
		}
		return ""
	})
}
