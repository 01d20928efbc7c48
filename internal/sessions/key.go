// Package sessions provides the session key builder and session metadata
// persistence.
//
// Session keys follow the canonical format:
//
//	agent:{agentId}:{channel}:{accountId}:{kind}:{chatId}
//
// Examples:
//
//	agent:main:vimagram:acct1:direct:386246614
//	agent:main:vimagram:acct1:group:team-ops
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes DM from group conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup  PeerKind = "group"
)

// BuildSessionKey builds the canonical session key for a conversation.
func BuildSessionKey(agentID, channel, accountID string, kind PeerKind, chatID string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s:%s", agentID, channel, accountID, kind, chatID)
}

// ParseSessionKey extracts the agentID and rest from a canonical session key.
// Returns ("", "") if the key is not in the expected format.
func ParseSessionKey(key string) (agentID, rest string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "agent" {
		return "", ""
	}
	return parts[1], parts[2]
}

// PeerKindFromChatType returns PeerGroup for group chats, PeerDirect otherwise.
func PeerKindFromChatType(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}
