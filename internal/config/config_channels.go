package config

// ChannelsConfig contains per-surface configuration.
type ChannelsConfig struct {
	Vimagram []VimagramAccountConfig `json:"vimagram,omitempty"`
}

// VimagramAccountConfig configures one Vimagram bridge account.
type VimagramAccountConfig struct {
	AccountID string `json:"account_id"`
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url"`            // https:// bridge endpoint, required
	BridgeWS  string `json:"bridge_ws,omitempty"` // inbound WebSocket URL (default derived from base_url)
	Token     string `json:"token,omitempty"`     // bearer token for outbound calls

	DMPolicy    string `json:"dm_policy,omitempty"`    // "pairing" (default), "open", "disabled"
	GroupPolicy string `json:"group_policy,omitempty"` // "open" (default), "allowlist", "disabled"

	AllowFrom      FlexibleStringSlice    `json:"allow_from,omitempty"`       // DM allowlist
	GroupAllowFrom FlexibleStringSlice    `json:"group_allow_from,omitempty"` // channel-wide group sender allowlist
	Groups         map[string]GroupConfig `json:"groups,omitempty"`           // keyed by chat id, chat name, or "*"

	// ModeAccounts redirects a declared mode to a different downstream
	// account id. Machine-level overrides take precedence over this map.
	ModeAccounts map[string]string `json:"mode_accounts,omitempty"`

	Security SecurityConfig `json:"security,omitempty"`
	Signing  SigningConfig  `json:"signing,omitempty"`

	SendRatePerSecond float64 `json:"send_rate_per_second,omitempty"` // outbound pacing (default 1)
}

// GroupConfig holds per-chat overrides. An entry under the wildcard key "*"
// supplies fallback settings for any group not matched by id or name.
type GroupConfig struct {
	Enabled        *bool               `json:"enabled,omitempty"`         // default true
	RequireMention *bool               `json:"require_mention,omitempty"` // default true
	AllowFrom      FlexibleStringSlice `json:"allow_from,omitempty"`      // group-scoped sender allowlist
	SystemPrompt   string              `json:"system_prompt,omitempty"`
}

// SecurityConfig gates who may interact and how often.
type SecurityConfig struct {
	UseAccessGroups    *bool `json:"use_access_groups,omitempty"`    // enforce allowlists for commands (default true)
	AllowTextCommands  *bool `json:"allow_text_commands,omitempty"`  // recognise /commands in message text (default true)
	RateLimitPerMinute int   `json:"rate_limit_per_minute,omitempty"` // per-sender, 0 = unlimited
}

// SigningConfig enables HMAC signatures on outbound bridge calls.
type SigningConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Secret  string `json:"secret,omitempty"`
}

// UseAccessGroups reports whether allowlists gate command authorization.
func (s SecurityConfig) UseAccessGroupsEnabled() bool {
	return s.UseAccessGroups == nil || *s.UseAccessGroups
}

// AllowTextCommandsEnabled reports whether /commands are recognised in text.
func (s SecurityConfig) AllowTextCommandsEnabled() bool {
	return s.AllowTextCommands == nil || *s.AllowTextCommands
}

// GroupEnabled reports whether the group is enabled (default true).
func (g GroupConfig) GroupEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}
