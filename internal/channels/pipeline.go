package channels

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/routing"
	"github.com/vimalinx/vimagram/internal/sessions"
	"github.com/vimalinx/vimagram/internal/store"
)

// Decision is the outcome of one gate or of the whole pipeline. Admission
// denials are control flow, not errors: a failed gate drops the message
// silently with a diagnostic reason.
type Decision struct {
	Admit  bool
	Reason string
}

// Admitted is the passing decision.
func Admitted() Decision { return Decision{Admit: true} }

// Dropped is a terminal denial with a diagnostic reason.
func Dropped(reason string) Decision { return Decision{Reason: reason} }

// PipelineDeps wires a Pipeline to its collaborators. AllowFrom, Pairing,
// Sessions, and Registry may be nil; the corresponding behavior degrades
// (static allowlists only, no pairing replies, no prior-activity stamps).
type PipelineDeps struct {
	Cfg       *config.Config
	Channel   string // surface name, e.g. "vimagram"
	AccountID string
	Limiter   *SenderRateLimiter
	AllowFrom store.AllowFromStore
	Pairing   *PairingCoordinator
	Registry  *MachineProfileRegistry
	Sessions  *sessions.Store
	Dispatch  DispatchFunc
	Deliver   DeliverFunc

	// Now is the clock; defaults to time.Now. Tests substitute it.
	Now func() time.Time
}

// Pipeline sequences the admission gates for one channel account and, on
// success, assembles the agent context and invokes the dispatch boundary.
// Each inbound message is one independent call; concurrent calls are safe.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline creates a pipeline for one account.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Limiter == nil {
		deps.Limiter = NewSenderRateLimiter()
	}
	return &Pipeline{deps: deps}
}

// storeChannelID scopes store-backed allow-from entries and pairing requests.
func (p *Pipeline) storeChannelID() string {
	return p.deps.Channel + ":" + p.deps.AccountID
}

// account returns the current config snapshot for this pipeline's account.
func (p *Pipeline) account() *config.VimagramAccountConfig {
	snap := p.deps.Cfg.Snapshot()
	for i := range snap.Vimagram {
		if snap.Vimagram[i].AccountID == p.deps.AccountID {
			return &snap.Vimagram[i]
		}
	}
	return nil
}

// Process runs one inbound message through every gate in order and, when
// admitted, hands the assembled context to the dispatch boundary. The
// returned Decision reports the first failing gate; every drop is terminal
// for the message.
func (p *Pipeline) Process(ctx context.Context, msg *InboundMessage) Decision {
	acc := p.account()
	if acc == nil {
		return p.drop(msg, "account not configured")
	}

	isGroup := msg.ChatType == ChatGroup
	sec := acc.Security

	// Gate 0: rate limit. Unconditional first gate. A rejected message is
	// dropped entirely, with no pairing and no reply.
	key := RateLimitKey(p.deps.Channel, p.deps.AccountID, msg.SenderID)
	if !p.deps.Limiter.Allow(key, sec.RateLimitPerMinute) {
		return p.drop(msg, "rate limited")
	}

	// Store-backed allow-from entries merge with static configuration before
	// every gating decision. A read failure degrades to static-only.
	var stored []string
	if p.deps.AllowFrom != nil {
		entries, err := p.deps.AllowFrom.Read(ctx, p.storeChannelID())
		if err != nil {
			slog.Warn("allow-from store read failed, using static config only",
				"channel", p.storeChannelID(), "error", err)
		} else {
			stored = entries
		}
	}
	dmList := MergeAllowFrom(acc.AllowFrom, stored)

	var groupMatch GroupMatch
	var gate CommandGateResult
	allowText := ShouldHandleTextCommands(acc)
	hasCmd := HasControlCommand(msg.Body)

	if isGroup {
		// Group admission: the chat itself must be configured (or implicitly
		// allowed when no groups map exists).
		groupMatch = ResolveGroup(acc.Groups, msg.ChatID, msg.ChatName)
		if !groupMatch.Allowed {
			return p.drop(msg, "group not allowed")
		}

		outer := NormalizeAllowFrom(acc.GroupAllowFrom)
		inner := groupMatch.AllowFrom()
		senderAllowed := GroupSenderAllowed(outer, inner, msg.SenderID, msg.SenderName)
		configured := len(outer) > 0 || len(inner) > 0

		// Command-block check runs before policy admission: an unauthorized
		// control command is blocked even under an open group policy.
		gate = EvaluateCommandGate(senderAllowed, configured, sec.UseAccessGroupsEnabled(), allowText, hasCmd)
		if gate.ShouldBlock {
			return p.drop(msg, "unauthorized command")
		}

		switch acc.GroupPolicy {
		case "disabled":
			return p.drop(msg, "groups disabled")
		case "allowlist":
			if !senderAllowed {
				return p.drop(msg, "sender not in group allowlist")
			}
		default: // "open"
		}

		if ShouldSkipForMention(MentionGateInput{
			IsGroup:           true,
			RequireMention:    groupMatch.RequireMention(),
			WasMentioned:      msg.WasMentioned,
			AllowTextCommands: allowText,
			HasControlCommand: hasCmd,
			CommandAuthorized: gate.CommandAuthorized,
		}) {
			return p.drop(msg, "no mention")
		}
	} else {
		senderAllowed := MatchAllowFrom(dmList, msg.SenderID, msg.SenderName)
		configured := len(dmList) > 0
		gate = EvaluateCommandGate(senderAllowed, configured, sec.UseAccessGroupsEnabled(), allowText, hasCmd)

		switch acc.DMPolicy {
		case "disabled":
			return p.drop(msg, "dms disabled")
		case "open":
			// Accept all senders.
		default: // "pairing" or unknown, the secure default
			if !configured || !senderAllowed {
				if p.deps.Pairing != nil {
					p.deps.Pairing.RequestPairing(ctx, p.storeChannelID(), msg)
				}
				return p.drop(msg, "sender not paired")
			}
		}
	}

	mc := p.assembleContext(acc, msg, groupMatch, gate, isGroup)

	// Session metadata failures are logged, not fatal; the message still
	// dispatches.
	if p.deps.Sessions != nil {
		rec := sessions.Record{
			Channel:       p.deps.Channel,
			AccountID:     mc.AccountID,
			ChatID:        msg.ChatID,
			SenderID:      msg.SenderID,
			Mode:          mc.Mode,
			LastMessageID: msg.MessageID,
			Updated:       mc.Timestamp,
		}
		if err := p.deps.Sessions.RecordInbound(mc.SessionKey, rec); err != nil {
			slog.Warn("session record failed", "session", mc.SessionKey, "error", err)
		}
	}

	if p.deps.Dispatch != nil {
		if err := p.deps.Dispatch(ctx, &mc, p.deliverFunc(mc.SessionKey)); err != nil {
			slog.Error("dispatch failed", "session", mc.SessionKey, "error", err)
		}
	}
	return Admitted()
}

// assembleContext resolves mode/identity, the agent route, timestamps, and
// the display envelope into the outbound context object.
func (p *Pipeline) assembleContext(acc *config.VimagramAccountConfig, msg *InboundMessage, groupMatch GroupMatch, gate CommandGateResult, isGroup bool) MsgContext {
	modeRoute := ResolveModeRoute(acc, p.deps.Registry, p.deps.AccountID, msg)

	kind := sessions.PeerKindFromChatType(isGroup)
	route := routing.ResolveAgentRoute(p.deps.Cfg, p.deps.Channel, modeRoute.AccountID, routing.Peer{
		Kind:   kind,
		ChatID: msg.ChatID,
	})

	now := p.deps.Now()
	ts := NormalizeTimestamp(msg.Timestamp, now)

	var prev time.Time
	if p.deps.Sessions != nil {
		if t, ok := p.deps.Sessions.ReadUpdatedAt(route.SessionKey); ok {
			prev = t
		}
	}

	body := msg.Body
	if max := p.deps.Cfg.Gateway.MaxMessageChars; max > 0 && len(body) > max {
		// Back up to a rune boundary so the cut never splits a multibyte
		// character.
		cut := max
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	senderLabel := msg.SenderName
	if senderLabel == "" {
		senderLabel = msg.SenderID
	}
	if isGroup {
		body = "[From: " + senderLabel + "]\n" + body
	}

	var groupPrompt, groupSubject string
	if isGroup {
		groupPrompt = groupMatch.SystemPrompt()
		groupSubject = msg.ChatName
	}

	envelope := FormatAgentEnvelope(ResolveEnvelopeFormatOptions(p.deps.Cfg), EnvelopeInput{
		ChannelLabel: "Vimagram/" + p.deps.AccountID,
		SenderLabel:  senderLabel,
		ChatLabel:    msg.ChatName,
		Timestamp:    ts,
		PrevActivity: prev,
		Body:         body,
	})

	return FinalizeInboundContext(MsgContext{
		SessionKey:        route.SessionKey,
		AgentID:           route.AgentID,
		AccountID:         modeRoute.AccountID,
		ArrivalAccountID:  p.deps.AccountID,
		Channel:           p.deps.Channel,
		ChatType:          msg.ChatType,
		ChatID:            msg.ChatID,
		ChatName:          msg.ChatName,
		SenderID:          msg.SenderID,
		SenderName:        msg.SenderName,
		GroupSubject:      groupSubject,
		SystemPrompt:      MergeSystemPrompts(groupPrompt, modeRoute.PersonaPrompt),
		Mode:              modeRoute.Meta.Mode,
		ModeLabel:         modeRoute.Meta.ModeLabel,
		ModelHint:         modeRoute.Meta.ModelHint,
		AgentHint:         modeRoute.Meta.AgentHint,
		SkillsHint:        modeRoute.Meta.SkillsHint,
		WasMentioned:      msg.WasMentioned,
		CommandAuthorized: gate.CommandAuthorized,
		ReplyToID:         msg.MessageID,
		Timestamp:         ts,
		PrevActivity:      prev,
		Body:              body,
		Envelope:          envelope,
	})
}

// deliverFunc wraps the transport deliverer so every delivered reply stamps
// the session's last-outbound timestamp.
func (p *Pipeline) deliverFunc(sessionKey string) DeliverFunc {
	return func(ctx context.Context, payload ReplyPayload) error {
		if p.deps.Deliver == nil {
			return nil
		}
		if err := p.deps.Deliver(ctx, payload); err != nil {
			return err
		}
		if p.deps.Sessions != nil {
			if err := p.deps.Sessions.RecordOutbound(sessionKey, p.deps.Now()); err != nil {
				slog.Warn("outbound stamp failed", "session", sessionKey, "error", err)
			}
		}
		return nil
	}
}

func (p *Pipeline) drop(msg *InboundMessage, reason string) Decision {
	slog.Debug("inbound message dropped",
		"channel", p.deps.Channel,
		"account", p.deps.AccountID,
		"chat_id", msg.ChatID,
		"chat_type", string(msg.ChatType),
		"sender", msg.SenderID,
		"reason", reason,
	)
	return Dropped(reason)
}
