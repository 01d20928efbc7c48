package channels

import "time"

// MsgContext is the assembled agent-context envelope handed to the dispatch
// boundary for one admitted message. Deterministic given identical inputs and
// external state.
type MsgContext struct {
	SessionKey string
	AgentID    string

	// AccountID is the downstream account after any mode redirect.
	AccountID string
	// ArrivalAccountID is the account the message physically arrived on.
	ArrivalAccountID string

	Channel  string
	ChatType ChatType
	ChatID   string
	ChatName string

	SenderID   string
	SenderName string

	// GroupSubject is set for group chats only. SystemPrompt is the merged
	// group+persona prompt; either contribution may be absent.
	GroupSubject string
	SystemPrompt string

	Mode       string
	ModeLabel  string
	ModelHint  string
	AgentHint  string
	SkillsHint string

	WasMentioned      bool
	CommandAuthorized bool

	// ReplyToID is the inbound message id, used as the reply target.
	ReplyToID string

	Timestamp    time.Time
	PrevActivity time.Time // zero when the session has no prior activity

	Body     string
	Envelope string // formatted display envelope for the agent prompt

	// Surface provenance.
	Surface string
}

// FinalizeInboundContext performs the last normalization pass before the
// context crosses the dispatch boundary: provenance defaults and a DM
// chat-name fallback to the sender label.
func FinalizeInboundContext(mc MsgContext) MsgContext {
	if mc.Surface == "" {
		mc.Surface = mc.Channel
	}
	if mc.ChatType == ChatDirect && mc.ChatName == "" {
		mc.ChatName = mc.SenderName
	}
	return mc
}
