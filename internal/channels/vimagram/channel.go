// Package vimagram connects one Vimagram bridge account to the admission
// pipeline. The bridge handles the surface protocol; this adapter receives
// JSON messages over a WebSocket and sends replies via HTTP POST.
package vimagram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vimalinx/vimagram/internal/bus"
	"github.com/vimalinx/vimagram/internal/channels"
	"github.com/vimalinx/vimagram/internal/config"
)

const reconnectDelay = 5 * time.Second

// wireMessage is the inbound JSON shape delivered by the bridge.
type wireMessage struct {
	Type       string `json:"type"`
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	ChatID     string `json:"chatId"`
	ChatName   string `json:"chatName,omitempty"`
	ChatType   string `json:"chatType"` // "direct" or "group"
	Text       string `json:"text"`
	Mentioned  bool   `json:"mentioned,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Mode       string `json:"mode,omitempty"`
	ModeLabel  string `json:"modeLabel,omitempty"`
	ModelHint  string `json:"modelHint,omitempty"`
	AgentHint  string `json:"agentHint,omitempty"`
	SkillsHint string `json:"skillsHint,omitempty"`
}

// Channel is one bridge account adapter.
type Channel struct {
	*channels.BaseChannel
	cfg      config.VimagramAccountConfig
	client   *Client
	pipeline *channels.Pipeline

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Vimagram channel adapter for one account.
func New(acc config.VimagramAccountConfig, pipeline *channels.Pipeline) (*Channel, error) {
	if acc.BaseURL == "" {
		return nil, fmt.Errorf("vimagram base_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("vimagram", acc.AccountID),
		cfg:         acc,
		client:      NewClient(&acc),
		pipeline:    pipeline,
	}, nil
}

// Client returns the outbound transport for this account.
func (c *Channel) Client() *Client { return c.client }

// Start connects to the bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting vimagram channel", "account", c.AccountID(), "bridge", c.wsURL())

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard; the reconnect loop will keep trying.
		slog.Warn("initial bridge connection failed, will retry", "account", c.AccountID(), "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the adapter.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping vimagram channel", "account", c.AccountID())

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message through the bridge transport.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	return c.client.SendMessage(ctx, SendRequest{
		ChatID:    msg.ChatID,
		Text:      msg.Content,
		ReplyToID: msg.ReplyToID,
		AccountID: c.AccountID(),
	})
}

// wsURL derives the inbound WebSocket endpoint from config.
func (c *Channel) wsURL() string {
	if c.cfg.BridgeWS != "" {
		return c.cfg.BridgeWS
	}
	return "wss://" + strings.TrimPrefix(c.cfg.BaseURL, "https://") + "/events"
}

func (c *Channel) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	headers := map[string][]string{}
	if c.cfg.Token != "" {
		headers["Authorization"] = []string{"Bearer " + c.cfg.Token}
	}

	conn, _, err := dialer.Dial(c.wsURL(), headers)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("vimagram bridge connected", "account", c.AccountID())
	return nil
}

// listenLoop reads bridge frames until shutdown, reconnecting on failure.
func (c *Channel) listenLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			if err := c.connect(); err != nil {
				slog.Warn("bridge reconnect failed", "account", c.AccountID(), "error", err)
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("bridge read failed, reconnecting", "account", c.AccountID(), "error", err)
			c.mu.Lock()
			_ = conn.Close()
			c.conn = nil
			c.mu.Unlock()
			continue
		}

		var wire wireMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			slog.Debug("bridge frame ignored", "account", c.AccountID(), "error", err)
			continue
		}
		if wire.Type != "message" || wire.SenderID == "" || wire.ChatID == "" {
			continue
		}

		// Each inbound message is one independent task; a slow external call
		// delays only that message.
		msg := toInbound(wire)
		go func() {
			c.pipeline.Process(c.ctx, &msg)
		}()
	}
}

func toInbound(w wireMessage) channels.InboundMessage {
	chatType := channels.ChatDirect
	if w.ChatType == "group" {
		chatType = channels.ChatGroup
	}
	return channels.InboundMessage{
		SenderID:     w.SenderID,
		SenderName:   w.SenderName,
		ChatID:       w.ChatID,
		ChatName:     w.ChatName,
		ChatType:     chatType,
		Body:         w.Text,
		WasMentioned: w.Mentioned,
		Timestamp:    w.Timestamp,
		Mode:         w.Mode,
		ModeLabel:    w.ModeLabel,
		ModelHint:    w.ModelHint,
		AgentHint:    w.AgentHint,
		SkillsHint:   w.SkillsHint,
		MessageID:    w.MessageID,
	}
}
