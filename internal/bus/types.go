package bus

import "context"

// InboundMessage represents a message that cleared admission on a chat
// surface and is ready for the agent-dispatch boundary.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	AccountID  string            `json:"account_id"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	PeerKind   string            `json:"peer_kind,omitempty"` // "direct" or "group"
	AgentID    string            `json:"agent_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a reply to be sent back to a chat surface.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	AccountID string `json:"account_id"`
	ChatID    string `json:"chat_id"`
	Content   string `json:"content"`
	// SessionKey echoes the inbound message's session so the gateway can
	// route the reply back through that session's dispatcher.
	SessionKey string            `json:"session_key,omitempty"`
	ReplyToID  string            `json:"reply_to_id,omitempty"`
	Media      []MediaAttachment `json:"media,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MediaAttachment represents a media file to be sent with a message.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// MessageRouter abstracts inbound/outbound message routing between channels
// and the agent-dispatch boundary.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
