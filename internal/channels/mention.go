package channels

// MentionGateInput feeds the group mention gate.
type MentionGateInput struct {
	IsGroup           bool
	RequireMention    bool
	WasMentioned      bool
	AllowTextCommands bool
	HasControlCommand bool
	CommandAuthorized bool
}

// ShouldSkipForMention decides whether a group message is ambient chatter the
// agent should not see. Direct messages never require a mention. An
// authorized control command bypasses the requirement so operators can
// administer the bot without tagging it.
func ShouldSkipForMention(in MentionGateInput) bool {
	if !in.IsGroup || !in.RequireMention || in.WasMentioned {
		return false
	}
	if in.AllowTextCommands && in.HasControlCommand && in.CommandAuthorized {
		return false
	}
	return true
}
