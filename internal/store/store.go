// Package store defines the persistence contracts consumed by the admission
// pipeline. Implementations live in subpackages.
package store

import (
	"context"
	"time"
)

// PairingMeta carries optional sender context recorded with a pairing request.
type PairingMeta struct {
	SenderName string
	ChatID     string
}

// PairingRequest is one pending pairing handshake.
type PairingRequest struct {
	ChannelID  string
	SenderID   string
	SenderName string
	ChatID     string
	Code       string
	CreatedAt  time.Time
}

// AllowFromStore is the store-backed half of the allowlist: entries added by
// pairing approval, merged with static configuration before every gating
// decision.
type AllowFromStore interface {
	// Read returns the store-backed allow-from entries for a channel account.
	Read(ctx context.Context, channelID string) ([]string, error)

	// UpsertPairingRequest issues a pairing code for an unrecognized sender.
	// Idempotent per (channelID, senderID): repeated calls for an unresolved
	// sender return the existing code with created=false. The created flag is
	// computed atomically by the store.
	UpsertPairingRequest(ctx context.Context, channelID, senderID string, meta PairingMeta) (code string, created bool, err error)
}

// PairingAdmin exposes the out-of-band approval path used by the CLI:
// approving a request moves the sender into the allow-from list.
type PairingAdmin interface {
	ListPairingRequests(ctx context.Context) ([]PairingRequest, error)
	ApprovePairing(ctx context.Context, code string) (*PairingRequest, error)
	AddAllowFrom(ctx context.Context, channelID, entry string) error
}
