package cmd

import (
	"context"
	"log/slog"

	"github.com/vimalinx/vimagram/internal/bus"
	"github.com/vimalinx/vimagram/internal/channels/vimagram"
)

// consumeInbound drains admitted messages off the bus. This is the agent
// hand-off point: an embedded agent runtime would pick messages up here and
// publish its replies as outbound bus traffic.
func consumeInbound(ctx context.Context, msgBus *bus.MessageBus) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		slog.Info("message admitted",
			"session", msg.SessionKey,
			"agent", msg.AgentID,
			"account", msg.AccountID,
			"sender", msg.SenderID,
			"chat", msg.ChatID,
			"peer_kind", msg.PeerKind,
		)
	}
}

// forwardOutbound routes outbound bus messages back to the chat surface.
// Replies carrying a known session key go through that session's dispatcher,
// which stamps last-outbound activity; everything else is sent raw via the
// channel adapter for the target account. Messages for unknown accounts are
// dropped with a log.
func forwardOutbound(ctx context.Context, msgBus *bus.MessageBus, chans []*vimagram.Channel, replies *replyRouter) {
	byAccount := make(map[string]*vimagram.Channel, len(chans))
	for _, ch := range chans {
		byAccount[ch.AccountID()] = ch
	}

	for {
		msg, ok := msgBus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		if replies.route(ctx, msg) {
			continue
		}
		ch, found := byAccount[msg.AccountID]
		if !found {
			slog.Warn("outbound message for unknown account dropped",
				"account", msg.AccountID, "chat", msg.ChatID)
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			slog.Error("outbound send failed",
				"account", msg.AccountID, "chat", msg.ChatID, "error", err)
		}
	}
}
