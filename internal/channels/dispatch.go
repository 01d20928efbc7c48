package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/vimalinx/vimagram/internal/bus"
)

// ReplyPayload is one combined delivery unit: text plus any attachments,
// addressed back to the originating chat.
type ReplyPayload struct {
	AccountID   string
	ChatID      string
	ReplyToID   string
	Text        string
	Attachments []bus.MediaAttachment
}

// DeliverFunc physically transmits one reply payload.
type DeliverFunc func(ctx context.Context, payload ReplyPayload) error

// DispatchFunc is the agent-dispatch boundary: it receives the assembled
// context together with a delivery callback for the eventual reply.
type DispatchFunc func(ctx context.Context, mc *MsgContext, deliver DeliverFunc) error

// DispatcherOptions configures a BlockDispatcher.
type DispatcherOptions struct {
	Deliver DeliverFunc
	OnError func(err error)
}

// BlockDispatcher buffers reply blocks (text chunks and attachments) and
// flushes them as one combined payload. Agent responses arrive as multiple
// blocks; surfaces want one message.
type BlockDispatcher struct {
	mu          sync.Mutex
	opts        DispatcherOptions
	accountID   string
	chatID      string
	replyToID   string
	texts       []string
	attachments []bus.MediaAttachment
}

// NewBlockDispatcher creates a dispatcher addressed to mc's conversation.
func NewBlockDispatcher(mc *MsgContext, opts DispatcherOptions) *BlockDispatcher {
	return &BlockDispatcher{
		opts:      opts,
		accountID: mc.AccountID,
		chatID:    mc.ChatID,
		replyToID: mc.ReplyToID,
	}
}

// PushText buffers a text block.
func (d *BlockDispatcher) PushText(text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
}

// PushAttachment buffers a media attachment.
func (d *BlockDispatcher) PushAttachment(att bus.MediaAttachment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attachments = append(d.attachments, att)
}

// Flush combines the buffered blocks into one payload and delivers it.
// Errors go to OnError; the buffer is cleared either way so a failed flush
// cannot duplicate content on the next one.
func (d *BlockDispatcher) Flush(ctx context.Context) {
	d.mu.Lock()
	payload := ReplyPayload{
		AccountID:   d.accountID,
		ChatID:      d.chatID,
		ReplyToID:   d.replyToID,
		Text:        FormatReplyBody(d.texts, d.attachments),
		Attachments: d.attachments,
	}
	d.texts = nil
	d.attachments = nil
	d.mu.Unlock()

	if payload.Text == "" && len(payload.Attachments) == 0 {
		return
	}
	if err := d.opts.Deliver(ctx, payload); err != nil && d.opts.OnError != nil {
		d.opts.OnError(err)
	}
}

// FormatReplyBody combines text blocks and attachment captions into one
// outbound body. Attachment URLs without captions are appended as bare lines.
func FormatReplyBody(texts []string, attachments []bus.MediaAttachment) string {
	parts := make([]string, 0, len(texts)+len(attachments))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	for _, att := range attachments {
		switch {
		case att.Caption != "":
			parts = append(parts, att.Caption)
		case att.URL != "":
			parts = append(parts, att.URL)
		}
	}
	return strings.Join(parts, "\n\n")
}
