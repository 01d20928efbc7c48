package channels

import (
	"strings"

	"github.com/vimalinx/vimagram/internal/config"
)

// WildcardGroupKey matches any group not matched by id or name.
const WildcardGroupKey = "*"

// GroupMatch is the outcome of resolving a group chat against the per-group
// configuration map.
type GroupMatch struct {
	// Group is the specifically matched config (by chat id or name), nil if
	// only the wildcard or nothing matched.
	Group *config.GroupConfig

	// Wildcard carries the "*" entry when present; a fallback source for
	// settings the specific match does not override.
	Wildcard *config.GroupConfig

	// Allowed reports whether the chat is admitted at the group level.
	Allowed bool

	// Configured reports whether a groups map exists at all. When false,
	// every group is implicitly allowed.
	Configured bool
}

// ResolveGroup classifies a group chat against the configured groups map.
// Lookup order: exact chat-id key, exact trimmed chat-name key, wildcard.
// No map at all admits everything; a map with no match and no wildcard denies.
func ResolveGroup(groups map[string]config.GroupConfig, chatID, chatName string) GroupMatch {
	if len(groups) == 0 {
		return GroupMatch{Allowed: true}
	}

	m := GroupMatch{Configured: true}
	if wc, ok := groups[WildcardGroupKey]; ok {
		m.Wildcard = &wc
	}

	if g, ok := groups[chatID]; ok {
		m.Group = &g
	} else if name := strings.TrimSpace(chatName); name != "" {
		if g, ok := groups[name]; ok {
			m.Group = &g
		}
	}

	switch {
	case m.Group != nil:
		m.Allowed = m.Group.GroupEnabled()
	case m.Wildcard != nil:
		m.Allowed = m.Wildcard.GroupEnabled()
	}
	return m
}

// RequireMention resolves the mention requirement for a matched group:
// true unless explicitly disabled on the specific match or, failing that,
// on the wildcard.
func (m GroupMatch) RequireMention() bool {
	if m.Group != nil && m.Group.RequireMention != nil {
		return *m.Group.RequireMention
	}
	if m.Wildcard != nil && m.Wildcard.RequireMention != nil {
		return *m.Wildcard.RequireMention
	}
	return true
}

// AllowFrom returns the group-scoped allowlist, preferring the specific match
// and falling back to the wildcard. Normalized.
func (m GroupMatch) AllowFrom() []string {
	if m.Group != nil && len(m.Group.AllowFrom) > 0 {
		return NormalizeAllowFrom(m.Group.AllowFrom)
	}
	if m.Wildcard != nil && len(m.Wildcard.AllowFrom) > 0 {
		return NormalizeAllowFrom(m.Wildcard.AllowFrom)
	}
	return nil
}

// SystemPrompt returns the group system prompt, preferring the specific match.
func (m GroupMatch) SystemPrompt() string {
	if m.Group != nil && m.Group.SystemPrompt != "" {
		return m.Group.SystemPrompt
	}
	if m.Wildcard != nil {
		return m.Wildcard.SystemPrompt
	}
	return ""
}
