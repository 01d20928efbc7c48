package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vimalinx/vimagram/internal/store"
)

// ReplySender delivers a plain-text reply into a chat. Surfaces provide one;
// the pairing coordinator uses it for the single pairing-instructions reply.
type ReplySender func(ctx context.Context, chatID, text string) error

// PairingCoordinator issues pairing codes for unrecognized DM senders.
// The Unknown→PendingPairing transition happens here; PendingPairing→Paired
// happens out of band (store approval) and is observed only because a later
// allowlist merge includes the sender.
type PairingCoordinator struct {
	store store.AllowFromStore
	send  ReplySender
}

// NewPairingCoordinator wires the coordinator to its store and reply path.
func NewPairingCoordinator(s store.AllowFromStore, send ReplySender) *PairingCoordinator {
	return &PairingCoordinator{store: s, send: send}
}

// RequestPairing upserts a pairing request for the sender and, when the
// request was newly created, sends exactly one instructions reply. The
// inbound message is dropped by the caller regardless. Reply delivery
// failures are logged, never propagated.
func (p *PairingCoordinator) RequestPairing(ctx context.Context, channelID string, msg *InboundMessage) {
	if p == nil || p.store == nil {
		return
	}

	meta := store.PairingMeta{SenderName: msg.SenderName, ChatID: msg.ChatID}
	code, created, err := p.store.UpsertPairingRequest(ctx, channelID, msg.SenderID, meta)
	if err != nil {
		slog.Warn("pairing request failed", "channel", channelID, "sender", msg.SenderID, "error", err)
		return
	}
	if !created {
		slog.Debug("pairing already pending", "channel", channelID, "sender", msg.SenderID)
		return
	}

	text := fmt.Sprintf(
		"Access not configured.\n\nYour sender id: %s\nPairing code: %s\n\nAsk the account owner to approve with:\n  vimagram pairing approve %s",
		msg.SenderID, code, code,
	)
	if p.send != nil {
		if err := p.send(ctx, msg.ChatID, text); err != nil {
			slog.Warn("pairing reply delivery failed", "channel", channelID, "sender", msg.SenderID, "error", err)
			return
		}
	}
	slog.Info("pairing reply sent", "channel", channelID, "sender", msg.SenderID, "code", code)
}
