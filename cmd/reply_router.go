package cmd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vimalinx/vimagram/internal/bus"
	"github.com/vimalinx/vimagram/internal/channels"
)

// replyRouter hands outbound bus messages to the block dispatcher of the
// session they answer, so replies ride the pipeline's delivery path and stamp
// the session's last-outbound activity. Sessions this gateway never
// dispatched for are unknown here; those messages fall back to a raw channel
// send.
type replyRouter struct {
	mu        sync.Mutex
	bySession map[string]*channels.BlockDispatcher
}

func newReplyRouter() *replyRouter {
	return &replyRouter{bySession: make(map[string]*channels.BlockDispatcher)}
}

// register addresses a dispatcher to mc's conversation. A later message on
// the same session re-registers so the reply quotes the latest inbound.
func (r *replyRouter) register(mc *channels.MsgContext, deliver channels.DeliverFunc) {
	sessionKey := mc.SessionKey
	d := channels.NewBlockDispatcher(mc, channels.DispatcherOptions{
		Deliver: deliver,
		OnError: func(err error) {
			slog.Error("reply delivery failed", "session", sessionKey, "error", err)
		},
	})
	r.mu.Lock()
	r.bySession[sessionKey] = d
	r.mu.Unlock()
}

// route flushes one outbound message through its session's dispatcher.
// Returns false when the message carries no session key or the session is
// unknown.
func (r *replyRouter) route(ctx context.Context, msg bus.OutboundMessage) bool {
	if msg.SessionKey == "" {
		return false
	}
	r.mu.Lock()
	d, ok := r.bySession[msg.SessionKey]
	r.mu.Unlock()
	if !ok {
		return false
	}
	d.PushText(msg.Content)
	for _, att := range msg.Media {
		d.PushAttachment(att)
	}
	d.Flush(ctx)
	return true
}
