package channels

import (
	"fmt"
	"strings"
	"time"

	"github.com/vimalinx/vimagram/internal/config"
)

// EnvelopeOptions controls display-envelope formatting.
type EnvelopeOptions struct {
	TimeFormat string
	Location   *time.Location
}

const defaultEnvelopeTimeFormat = "2006-01-02 15:04 MST"

// ResolveEnvelopeFormatOptions derives formatting options from gateway config.
func ResolveEnvelopeFormatOptions(cfg *config.Config) EnvelopeOptions {
	opts := EnvelopeOptions{
		TimeFormat: cfg.Gateway.TimeFormat,
		Location:   time.Local,
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = defaultEnvelopeTimeFormat
	}
	if cfg.Gateway.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Gateway.Timezone); err == nil {
			opts.Location = loc
		}
	}
	return opts
}

// EnvelopeInput is the raw material for one display envelope.
type EnvelopeInput struct {
	ChannelLabel string // e.g. "Vimagram/acct1"
	SenderLabel  string
	ChatLabel    string
	Timestamp    time.Time
	PrevActivity time.Time // zero when none
	Body         string
}

// FormatAgentEnvelope renders the header line plus raw body:
//
//	[Vimagram/acct1] Ann (team-ops) at 2026-08-29 10:12 UTC (last activity 2026-08-29 09:55 UTC):
//	hello
func FormatAgentEnvelope(opts EnvelopeOptions, in EnvelopeInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", in.ChannelLabel, in.SenderLabel)
	if in.ChatLabel != "" && in.ChatLabel != in.SenderLabel {
		fmt.Fprintf(&b, " (%s)", in.ChatLabel)
	}
	fmt.Fprintf(&b, " at %s", in.Timestamp.In(opts.Location).Format(opts.TimeFormat))
	if !in.PrevActivity.IsZero() {
		fmt.Fprintf(&b, " (last activity %s)", in.PrevActivity.In(opts.Location).Format(opts.TimeFormat))
	}
	b.WriteString(":\n")
	b.WriteString(in.Body)

	return b.String()
}
