package protocol

// Trigger action kinds.
const (
	ActionGag        = "gag"
	ActionHighlight  = "highlight"
	ActionCommand    = "command"
	ActionSubstitute = "substitute"
	ActionSound      = "sound"
	ActionDiscord    = "discord"
	ActionChatmon    = "chatmon"
)

// Alias match types.
const (
	MatchExact      = "exact"
	MatchStartsWith = "startsWith"
	MatchTinTin     = "tintin"
	MatchRegex      = "regex"
)

// Trigger is an ordered rule evaluated against every rendered line.
type Trigger struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Pattern string          `json:"pattern"`
	Enabled bool            `json:"enabled"`
	Actions []TriggerAction `json:"actions"`
}

// TriggerAction is one action of a trigger. Kind selects which of the other
// fields apply; templates may reference %0..%99 captures.
type TriggerAction struct {
	Kind string `json:"type"`

	// highlight
	Fg        string `json:"fg,omitempty"`
	Bg        string `json:"bg,omitempty"`
	Blink     bool   `json:"blink,omitempty"`
	Underline bool   `json:"underline,omitempty"`

	// command / substitute
	Template string `json:"template,omitempty"`

	// sound
	Name string `json:"name,omitempty"`

	// discord / chatmon
	WebhookURL string `json:"webhookUrl,omitempty"`
	Message    string `json:"message,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// Alias rewrites an outgoing command before it is sent to the MUD.
// Aliases are ordered; first match wins.
type Alias struct {
	Pattern     string `json:"pattern"`
	MatchType   string `json:"matchType"`
	Replacement string `json:"replacement"`
	Enabled     bool   `json:"enabled"`
}

// Ticker periodically emits a command string through the alias expander.
type Ticker struct {
	ID       string `json:"id"`
	Command  string `json:"command"`
	Interval int    `json:"interval"` // seconds, > 0
	Enabled  bool   `json:"enabled"`
}

// ChannelPref is the server-side notification routing for one chat channel.
type ChannelPref struct {
	Sound      bool   `json:"sound,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
	Discord    bool   `json:"discord,omitempty"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// StatPair is a current/max gauge.
type StatPair struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Stats is the full MIP stat snapshot sent in mip_stats frames.
type Stats struct {
	HP  StatPair `json:"hp"`
	SP  StatPair `json:"sp"`
	GP1 StatPair `json:"gp1"`
	GP2 StatPair `json:"gp2"`

	HPLabel  string `json:"hpLabel,omitempty"`
	SPLabel  string `json:"spLabel,omitempty"`
	GP1Label string `json:"gp1Label,omitempty"`
	GP2Label string `json:"gp2Label,omitempty"`

	Enemy    string `json:"enemy,omitempty"`
	EnemyPct string `json:"enemyPct,omitempty"`
	Round    int    `json:"round,omitempty"`

	Room  string `json:"room,omitempty"`
	Exits string `json:"exits,omitempty"`

	GuildRaw   string `json:"guildRaw,omitempty"`
	GuildColor string `json:"guildColor,omitempty"`

	Uptime string `json:"uptime,omitempty"`
	Reboot string `json:"reboot,omitempty"`

	// Derived guild variables parsed out of the guild lines, e.g.
	// "stance_current", "focus_pct".
	Vars map[string]string `json:"vars,omitempty"`
}
