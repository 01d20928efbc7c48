package cmd

import (
	"context"
	"testing"

	"github.com/vimalinx/vimagram/internal/bus"
	"github.com/vimalinx/vimagram/internal/channels"
)

func TestReplyRouterRoutesThroughDispatcher(t *testing.T) {
	var got []channels.ReplyPayload
	deliver := func(_ context.Context, p channels.ReplyPayload) error {
		got = append(got, p)
		return nil
	}

	r := newReplyRouter()
	r.register(&channels.MsgContext{
		AccountID:  "acct1",
		ChatID:     "42",
		ReplyToID:  "m-1",
		SessionKey: "agent:main:vimagram:acct1:direct:42",
	}, deliver)

	routed := r.route(context.Background(), bus.OutboundMessage{
		Channel:    "vimagram",
		AccountID:  "acct1",
		ChatID:     "42",
		Content:    "done",
		SessionKey: "agent:main:vimagram:acct1:direct:42",
		Media:      []bus.MediaAttachment{{URL: "https://files/chart.png", Caption: "a chart"}},
	})
	if !routed {
		t.Fatal("registered session was not routed")
	}
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	p := got[0]
	if p.AccountID != "acct1" || p.ChatID != "42" || p.ReplyToID != "m-1" {
		t.Errorf("payload addressing = %+v", p)
	}
	if p.Text != "done\n\na chart" {
		t.Errorf("payload text = %q", p.Text)
	}
	if len(p.Attachments) != 1 || p.Attachments[0].URL != "https://files/chart.png" {
		t.Errorf("payload attachments = %+v", p.Attachments)
	}
}

func TestReplyRouterUnknownSessionFallsBack(t *testing.T) {
	r := newReplyRouter()

	if r.route(context.Background(), bus.OutboundMessage{SessionKey: "agent:main:vimagram:acct1:direct:99"}) {
		t.Error("unknown session should not be routed")
	}
	if r.route(context.Background(), bus.OutboundMessage{AccountID: "acct1", Content: "hi"}) {
		t.Error("message without a session key should not be routed")
	}
}

func TestReplyRouterReregisterTargetsLatestMessage(t *testing.T) {
	var got []channels.ReplyPayload
	deliver := func(_ context.Context, p channels.ReplyPayload) error {
		got = append(got, p)
		return nil
	}

	key := "agent:main:vimagram:acct1:direct:42"
	r := newReplyRouter()
	r.register(&channels.MsgContext{AccountID: "acct1", ChatID: "42", ReplyToID: "m-1", SessionKey: key}, deliver)
	r.register(&channels.MsgContext{AccountID: "acct1", ChatID: "42", ReplyToID: "m-2", SessionKey: key}, deliver)

	if !r.route(context.Background(), bus.OutboundMessage{SessionKey: key, Content: "ack"}) {
		t.Fatal("session was not routed")
	}
	if len(got) != 1 || got[0].ReplyToID != "m-2" {
		t.Errorf("deliveries = %+v, want one reply quoting m-2", got)
	}
}
