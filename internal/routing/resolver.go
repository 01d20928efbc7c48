// Package routing resolves which agent a conversation binds to and the
// session key that scopes its persisted state.
package routing

import (
	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/sessions"
)

// Peer describes the conversation endpoint being routed.
type Peer struct {
	Kind   sessions.PeerKind
	ChatID string
}

// Route is the resolved agent target for one message.
type Route struct {
	AgentID    string
	AccountID  string
	SessionKey string
}

// ResolveAgentRoute maps (channel, account, peer) to an agent via configured
// bindings, falling back to the default agent. Bindings match most-specific
// first: exact peer, then account wildcard, then channel-wide.
func ResolveAgentRoute(cfg *config.Config, channel, accountID string, peer Peer) Route {
	agentID := cfg.ResolveDefaultAgentID()

	best := -1
	for _, b := range cfg.Routing.Bindings {
		if b.Channel != channel || b.AgentID == "" {
			continue
		}
		if b.AccountID != "" && b.AccountID != accountID {
			continue
		}
		score := 0
		switch b.Peer {
		case peer.ChatID:
			score = 2
		case "", "*":
			score = 1
		default:
			continue
		}
		if b.AccountID != "" {
			score++
		}
		if score > best {
			best = score
			agentID = b.AgentID
		}
	}

	return Route{
		AgentID:    agentID,
		AccountID:  accountID,
		SessionKey: sessions.BuildSessionKey(agentID, channel, accountID, peer.Kind, peer.ChatID),
	}
}
