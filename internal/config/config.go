// Package config defines the Vimagram gateway configuration. Config files are
// JSON5 (comments and trailing commas allowed) so hand-edited deployments stay
// readable.
package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON. Chat-surface
// identifiers are numeric for some tenants and string handles for others;
// both coerce to strings here.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the Vimagram gateway.
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Channels ChannelsConfig `json:"channels"`
	Routing  RoutingConfig  `json:"routing"`
	Sessions SessionsConfig `json:"sessions"`
	Data     DataConfig     `json:"data,omitempty"`

	mu sync.RWMutex
}

// GatewayConfig controls gateway-wide behavior.
type GatewayConfig struct {
	OwnerIDs        []string `json:"owner_ids,omitempty"`
	MaxMessageChars int      `json:"max_message_chars,omitempty"` // default 32000
	TimeFormat      string   `json:"time_format,omitempty"`       // envelope timestamp layout
	Timezone        string   `json:"timezone,omitempty"`          // IANA name, default local
}

// RoutingConfig maps conversations to agents.
type RoutingConfig struct {
	DefaultAgentID string         `json:"default_agent_id,omitempty"` // default "main"
	Bindings       []AgentBinding `json:"bindings,omitempty"`
}

// AgentBinding routes a channel/account/peer to a specific agent.
// Peer may be a chat ID or "*" for all chats on the account.
type AgentBinding struct {
	Channel   string `json:"channel"`
	AccountID string `json:"account_id,omitempty"`
	Peer      string `json:"peer,omitempty"`
	AgentID   string `json:"agent_id"`
}

// SessionsConfig controls session metadata persistence.
type SessionsConfig struct {
	Storage string `json:"storage,omitempty"` // default "~/.vimagram/sessions"
}

// DataConfig locates mutable gateway state (pairing/allow-from database).
type DataConfig struct {
	Dir string `json:"dir,omitempty"` // default "~/.vimagram/data"
}

// ResolveDefaultAgentID returns the configured default agent, or "main".
func (c *Config) ResolveDefaultAgentID() string {
	if c.Routing.DefaultAgentID != "" {
		return c.Routing.DefaultAgentID
	}
	return "main"
}

// Snapshot returns a copy of the channels config under the read lock.
// Pipelines hold the snapshot they started with across a live reload.
func (c *Config) Snapshot() ChannelsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Channels
}

// ReplaceChannels swaps the channels config under the write lock.
func (c *Config) ReplaceChannels(ch ChannelsConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Channels = ch
}
