package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/vimalinx/vimagram/internal/bus"
)

func TestBlockDispatcherFlushCombines(t *testing.T) {
	var delivered []ReplyPayload
	mc := &MsgContext{AccountID: "acct1", ChatID: "chat1", ReplyToID: "m-7"}
	d := NewBlockDispatcher(mc, DispatcherOptions{
		Deliver: func(ctx context.Context, p ReplyPayload) error {
			delivered = append(delivered, p)
			return nil
		},
	})

	d.PushText("first")
	d.PushText("")
	d.PushText("second")
	d.PushAttachment(bus.MediaAttachment{URL: "https://x/img.png", Caption: "a chart"})
	d.Flush(context.Background())

	if len(delivered) != 1 {
		t.Fatalf("delivered %d payloads, want 1", len(delivered))
	}
	p := delivered[0]
	if p.AccountID != "acct1" || p.ChatID != "chat1" || p.ReplyToID != "m-7" {
		t.Errorf("payload addressing = %+v", p)
	}
	if p.Text != "first\n\nsecond\n\na chart" {
		t.Errorf("Text = %q", p.Text)
	}
	if len(p.Attachments) != 1 {
		t.Errorf("Attachments = %v", p.Attachments)
	}

	// Buffer cleared: a second flush with nothing pushed delivers nothing.
	d.Flush(context.Background())
	if len(delivered) != 1 {
		t.Errorf("empty flush delivered a payload")
	}
}

func TestBlockDispatcherFlushErrorClearsBuffer(t *testing.T) {
	var gotErr error
	calls := 0
	d := NewBlockDispatcher(&MsgContext{ChatID: "c"}, DispatcherOptions{
		Deliver: func(ctx context.Context, p ReplyPayload) error {
			calls++
			return errors.New("send failed")
		},
		OnError: func(err error) { gotErr = err },
	})

	d.PushText("once")
	d.Flush(context.Background())
	d.Flush(context.Background())

	if calls != 1 {
		t.Errorf("deliver called %d times, want 1", calls)
	}
	if gotErr == nil {
		t.Error("OnError not invoked")
	}
}

func TestFormatReplyBody(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		atts  []bus.MediaAttachment
		want  string
	}{
		{
			name:  "texts joined with blank lines",
			texts: []string{" a ", "", "b"},
			want:  "a\n\nb",
		},
		{
			name: "caption preferred over url",
			atts: []bus.MediaAttachment{{URL: "https://x/1", Caption: "cap"}},
			want: "cap",
		},
		{
			name: "bare url appended",
			atts: []bus.MediaAttachment{{URL: "https://x/1"}},
			want: "https://x/1",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatReplyBody(tt.texts, tt.atts); got != tt.want {
				t.Errorf("FormatReplyBody = %q, want %q", got, tt.want)
			}
		})
	}
}
