// Package channels implements the inbound-message admission and routing
// pipeline for chat surfaces: rate limiting, allowlist evaluation, group
// resolution, pairing for unknown DM senders, command/mention gating, and
// mode-based identity overrides. Surfaces parse their wire format into an
// InboundMessage and hand it to a Pipeline.
package channels

import "time"

// ChatType distinguishes direct conversations from group chats.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// InboundMessage is a raw message as parsed from the chat surface.
// Immutable once received; the pipeline never mutates it.
type InboundMessage struct {
	SenderID   string
	SenderName string
	ChatID     string
	ChatName   string
	ChatType   ChatType
	Body       string

	// WasMentioned is set when the surface detected an explicit bot mention.
	WasMentioned bool

	// Timestamp is client-declared, in seconds or milliseconds, unvalidated.
	Timestamp int64

	// Client-declared routing hints; each independently optional and
	// untrusted until validated by the mode resolver.
	Mode       string
	ModeLabel  string
	ModelHint  string
	AgentHint  string
	SkillsHint string

	MessageID string
}

// timestampMinSeconds is the smallest value treated as a real unix-seconds
// timestamp. Smaller values are substituted with the current time.
const timestampMinSeconds = 1_000_000_000

// timestampMsThreshold marks where values are read as unix milliseconds.
const timestampMsThreshold = 1_000_000_000_000

// NormalizeTimestamp converts a client-declared timestamp to a time.Time.
// Values below one billion are treated as absent and replaced with now.
func NormalizeTimestamp(v int64, now time.Time) time.Time {
	switch {
	case v >= timestampMsThreshold:
		return time.UnixMilli(v)
	case v >= timestampMinSeconds:
		return time.Unix(v, 0)
	default:
		return now
	}
}
