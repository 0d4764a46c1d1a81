package mip

import "regexp"

// MIP inline color spans use the form <letter>text> with a single lowercase
// palette letter. An unmatched "<x" passes through literally.
var paletteRe = regexp.MustCompile(`<([bcgrsvwy])([^<>]*)>`)

var paletteColors = map[string]string{
	"b": "blue",
	"c": "cyan",
	"g": "green",
	"r": "red",
	"s": "gray",
	"v": "violet",
	"w": "white",
	"y": "yellow",
}

// Colorize rewrites palette spans into <hl> tags the browser can render.
func Colorize(s string) string {
	return paletteRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := paletteRe.FindStringSubmatch(m)
		return `<hl style="color:` + paletteColors[sub[1]] + `">` + sub[2] + `</hl>`
	})
}

// StripColors removes palette spans, keeping their text.
func StripColors(s string) string {
	return paletteRe.ReplaceAllString(s, "$2")
}
