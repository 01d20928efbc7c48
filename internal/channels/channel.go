package channels

import (
	"context"

	"github.com/vimalinx/vimagram/internal/bus"
)

// Channel defines the interface that chat-surface adapters satisfy.
type Channel interface {
	// Name returns the surface identifier (e.g. "vimagram").
	Name() string

	// AccountID returns the channel-account this adapter serves.
	AccountID() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the surface.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the adapter is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides shared bookkeeping for adapter implementations.
type BaseChannel struct {
	name      string
	accountID string
	running   bool
}

// NewBaseChannel creates a BaseChannel.
func NewBaseChannel(name, accountID string) *BaseChannel {
	return &BaseChannel{name: name, accountID: accountID}
}

// Name returns the surface name.
func (c *BaseChannel) Name() string { return c.name }

// AccountID returns the account id.
func (c *BaseChannel) AccountID() string { return c.accountID }

// IsRunning returns whether the adapter is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
