// Package protocol defines the JSON frames exchanged with browsers over the
// WebSocket connection, plus the shared rule and stat types those frames carry.
package protocol

// Inbound message types. The first frame on a connection must be TypeAuth.
const (
	TypeAuth            = "auth"
	TypeCommand         = "command"
	TypeSetTriggers     = "set_triggers"
	TypeSetAliases      = "set_aliases"
	TypeSetTickers      = "set_tickers"
	TypeSetMIP          = "set_mip"
	TypeSetDiscordPrefs = "set_discord_prefs"
	TypeSetServer       = "set_server"
	TypeKeepalive       = "keepalive"
	TypeHealthCheck     = "health_check"
	TypeReconnect       = "reconnect"
	TypeTestLine        = "test_line"
	TypeDisconnect      = "disconnect"
)

// Outbound message types.
const (
	TypeSessionNew     = "session_new"
	TypeSessionResumed = "session_resumed"
	TypeSessionTaken   = "session_taken"
	TypeError          = "error"
	TypeSystem         = "system"
	TypeMud            = "mud"
	TypeMIPStats       = "mip_stats"
	TypeMIPChat        = "mip_chat"
	TypeMIPDebug       = "mip_debug"
	TypeClientCommand  = "client_command"
	TypeDisableTrigger = "disable_trigger"
	TypeTriggerChatmon = "trigger_chatmon"
	TypeBroadcast      = "broadcast"
	TypeKeepaliveAck   = "keepalive_ack"
	TypeHealthOK       = "health_ok"
)

// Inbound is the open union of client-to-server frames, discriminated by Type.
// Fields not relevant to a given type are left at their zero value; unknown
// types are a recoverable error (logged and dropped).
type Inbound struct {
	Type string `json:"type"`

	// auth
	Token         string `json:"token,omitempty"`
	UserID        string `json:"userId,omitempty"`
	CharacterID   string `json:"characterId,omitempty"`
	CharacterName string `json:"characterName,omitempty"`
	IsWizard      bool   `json:"isWizard,omitempty"`

	// command
	Command string `json:"command,omitempty"`
	Raw     bool   `json:"raw,omitempty"`

	// set_triggers / set_aliases / set_tickers
	Triggers []Trigger `json:"triggers,omitempty"`
	Aliases  []Alias   `json:"aliases,omitempty"`
	Tickers  []Ticker  `json:"tickers,omitempty"`

	// set_mip
	Enabled bool   `json:"enabled,omitempty"`
	MIPID   string `json:"mipId,omitempty"`
	Debug   bool   `json:"debug,omitempty"`

	// set_discord_prefs
	Username     string                 `json:"username,omitempty"`
	ChannelPrefs map[string]ChannelPref `json:"channelPrefs,omitempty"`

	// set_server
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// test_line
	Line string `json:"line,omitempty"`
}

// Outbound is a server-to-client frame. One struct covers every outbound
// type; encoding/json omits the fields a given frame does not use.
type Outbound struct {
	Type string `json:"type"`

	Message string `json:"message,omitempty"`

	// session_resumed
	MudConnected bool `json:"mudConnected,omitempty"`

	// mud
	Line      string `json:"line,omitempty"`
	Highlight bool   `json:"highlight,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Test      bool   `json:"test,omitempty"`

	// mip_stats
	Stats *Stats `json:"stats,omitempty"`

	// mip_chat
	ChatType string `json:"chatType,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Raw      string `json:"raw,omitempty"`
	RawText  string `json:"rawText,omitempty"`

	// mip_debug
	MsgType string `json:"msgType,omitempty"`
	MsgData string `json:"msgData,omitempty"`

	// client_command
	Command string `json:"command,omitempty"`

	// disable_trigger
	TriggerID string `json:"triggerId,omitempty"`

	// broadcast
	Timestamp int64 `json:"timestamp,omitempty"`
}
