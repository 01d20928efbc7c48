package channels

import (
	"strings"
	"unicode"

	"github.com/vimalinx/vimagram/internal/config"
)

// ShouldHandleTextCommands reports whether /commands in message text are
// recognised for this account's surface.
func ShouldHandleTextCommands(acc *config.VimagramAccountConfig) bool {
	return acc.Security.AllowTextCommandsEnabled()
}

// HasControlCommand lexically detects a control command: trimmed text starting
// with "/" followed by a letter ("/reset", "/status"). A lone slash or
// slash-punctuation ("/..", emoticon tails) is ordinary text.
func HasControlCommand(text string) bool {
	t := strings.TrimSpace(text)
	if len(t) < 2 || t[0] != '/' {
		return false
	}
	return unicode.IsLetter(rune(t[1]))
}

// CommandGateResult is the per-message outcome of the command gate.
type CommandGateResult struct {
	// CommandAuthorized is true whenever the sender would be allowed to
	// issue commands, independent of whether this message contains one.
	// Feeds the mention-gate bypass.
	CommandAuthorized bool

	// ShouldBlock is true when this message carries a control command the
	// sender is not authorized to issue. Blocked outright, even under an
	// otherwise-open policy.
	ShouldBlock bool
}

// EvaluateCommandGate decides command authorization for one message.
//
// senderAllowed is the allowlist verdict for the applicable scope (group or
// DM); allowlistConfigured reports whether that scope has any allowlist at
// all. With access groups off, or no allowlist configured, every sender is
// command-authorized. When text commands are globally disabled, detection is
// moot and the message falls through as ordinary text.
func EvaluateCommandGate(senderAllowed, allowlistConfigured, useAccessGroups, allowTextCommands, hasControlCommand bool) CommandGateResult {
	authorized := senderAllowed || !useAccessGroups || !allowlistConfigured
	block := hasControlCommand &&
		allowTextCommands &&
		useAccessGroups &&
		allowlistConfigured &&
		!senderAllowed
	return CommandGateResult{CommandAuthorized: authorized, ShouldBlock: block}
}
