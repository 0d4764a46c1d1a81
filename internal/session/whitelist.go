package session

// The proxy only ever dials these MUDs. Process-wide read-only.
var whitelist = map[string]int{
	"3k.org":      3000,
	"3scapes.org": 3200,
}

// Allowed reports whether host:port is a whitelisted MUD endpoint.
func Allowed(host string, port int) bool {
	p, ok := whitelist[host]
	return ok && p == port
}

// ServerTag returns the short tag used in session listings.
func ServerTag(host string) string {
	switch host {
	case "3k.org":
		return "3k"
	case "3scapes.org":
		return "3s"
	}
	return ""
}
