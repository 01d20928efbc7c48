package vimagram

import (
	"context"
	"log/slog"

	"github.com/vimalinx/vimagram/internal/channels"
	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/sessions"
	"github.com/vimalinx/vimagram/internal/store"
)

// Deps are the shared collaborators each account adapter is wired with.
type Deps struct {
	Cfg       *config.Config
	Limiter   *channels.SenderRateLimiter
	AllowFrom store.AllowFromStore
	Registry  *channels.MachineProfileRegistry
	Sessions  *sessions.Store
	Dispatch  channels.DispatchFunc
}

// BuildChannels wires one adapter per enabled account: transport client,
// pairing coordinator, admission pipeline, and WebSocket listener.
func BuildChannels(deps Deps) ([]*Channel, error) {
	snap := deps.Cfg.Snapshot()

	var chans []*Channel
	for _, acc := range snap.Vimagram {
		if !acc.Enabled {
			continue
		}

		ch, err := New(acc, nil)
		if err != nil {
			return nil, err
		}
		client := ch.Client()

		// Pairing replies and primary-reply delivery both ride the same
		// outbound transport.
		sendText := func(ctx context.Context, chatID, text string) error {
			return client.SendMessage(ctx, SendRequest{
				ChatID:    chatID,
				Text:      text,
				AccountID: acc.AccountID,
			})
		}
		deliver := func(ctx context.Context, payload channels.ReplyPayload) error {
			return client.SendMessage(ctx, SendRequest{
				ChatID:    payload.ChatID,
				Text:      payload.Text,
				ReplyToID: payload.ReplyToID,
				AccountID: payload.AccountID,
			})
		}

		var pairing *channels.PairingCoordinator
		if deps.AllowFrom != nil {
			pairing = channels.NewPairingCoordinator(deps.AllowFrom, sendText)
		}

		ch.pipeline = channels.NewPipeline(channels.PipelineDeps{
			Cfg:       deps.Cfg,
			Channel:   "vimagram",
			AccountID: acc.AccountID,
			Limiter:   deps.Limiter,
			AllowFrom: deps.AllowFrom,
			Pairing:   pairing,
			Registry:  deps.Registry,
			Sessions:  deps.Sessions,
			Dispatch:  deps.Dispatch,
			Deliver:   deliver,
		})

		slog.Info("vimagram account configured",
			"account", acc.AccountID,
			"dm_policy", acc.DMPolicy,
			"group_policy", acc.GroupPolicy,
		)
		chans = append(chans, ch)
	}
	return chans, nil
}
